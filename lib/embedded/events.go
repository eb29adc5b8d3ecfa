package embedded

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/connpool/lib/pool"
)

// EventType categorizes simulation events.
type EventType int

const (
	// EventStarted is emitted when the simulation starts successfully.
	EventStarted EventType = iota
	// EventStopped is emitted when the simulation stops.
	EventStopped
	// EventWorkloadFinished is emitted when all producers have completed
	// their operations. The simulation keeps running until stopped.
	EventWorkloadFinished
	// EventSample is emitted for each reporter sample of pool statistics.
	EventSample
	// EventError is emitted when a recoverable error occurs.
	EventError
	// EventStateChanged is emitted when the simulation state changes.
	EventStateChanged
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventWorkloadFinished:
		return "workload_finished"
	case EventSample:
		return "sample"
	case EventError:
		return "error"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a simulation lifecycle or pool event.
type Event struct {
	// Type is the category of this event.
	Type EventType

	// Timestamp records when the event was emitted.
	Timestamp time.Time

	// Stats carries the pool snapshot for EventSample events,
	// nil otherwise.
	Stats *pool.Stats

	// Error carries the error for EventError events, nil otherwise.
	Error error

	// Message is a human-readable description of the event.
	Message string

	// Data holds event-specific payloads.
	// For EventStateChanged: map[string]any{"old": State, "new": State}
	// For EventWorkloadFinished: workload.Result
	Data any
}

// eventEmitter owns the buffered event channel. Emission never blocks:
// when the buffer is full the event is counted as dropped instead.
type eventEmitter struct {
	mu           sync.Mutex
	events       chan Event
	closed       bool
	droppedCount atomic.Uint64 // events dropped due to a full buffer
}

// newEventEmitter creates an emitter with the given buffer size.
func newEventEmitter(bufferSize int) *eventEmitter {
	if bufferSize < 1 {
		bufferSize = DefaultEventBufferSize
	}
	return &eventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// emit delivers an event to the channel, stamping the timestamp if the
// caller left it zero. Events that do not fit in the buffer increment
// the dropped counter; events emitted after close are discarded.
func (e *eventEmitter) emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- event:
	default:
		e.droppedCount.Add(1)
	}
}

// emitSimple emits an event carrying only a type and message.
func (e *eventEmitter) emitSimple(eventType EventType, message string) {
	e.emit(Event{
		Type:    eventType,
		Message: message,
	})
}

// emitError emits an error event.
func (e *eventEmitter) emitError(err error, message string) {
	e.emit(Event{
		Type:    EventError,
		Error:   err,
		Message: message,
	})
}

// emitSample emits a pool statistics sample event.
func (e *eventEmitter) emitSample(stats pool.Stats, message string) {
	e.emit(Event{
		Type:    EventSample,
		Stats:   &stats,
		Message: message,
	})
}

// emitStateChange emits a state change event.
func (e *eventEmitter) emitStateChange(oldState, newState State, message string) {
	e.emit(Event{
		Type:    EventStateChanged,
		Message: message,
		Data: map[string]any{
			"old": oldState,
			"new": newState,
		},
	})
}

// channel returns the receive side of the event stream.
func (e *eventEmitter) channel() <-chan Event {
	return e.events
}

// droppedEvents returns how many events were dropped because the buffer
// was full, which indicates a consumer that is not keeping up.
func (e *eventEmitter) droppedEvents() uint64 {
	return e.droppedCount.Load()
}

// close closes the event channel. Later emits are discarded.
func (e *eventEmitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}
