package resilience

import "errors"

// ErrCircuitOpen is returned when a request is rejected because the circuit is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")
