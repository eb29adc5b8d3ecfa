package workload

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnExecWritesActivity(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(3, &buf)

	err := c.Exec(context.Background(), "select 1", 0)
	require.NoError(t, err)
	assert.Equal(t, "conn 3: select 1\n", buf.String())
}

func TestConnExecHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConn(1, nil)
	err := c.Exec(ctx, "select 1", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnNilWriterDiscards(t *testing.T) {
	c := NewConn(1, nil)
	assert.NoError(t, c.Exec(context.Background(), "select 1", 0))
}

func TestConnID(t *testing.T) {
	c := NewConn(42, nil)
	assert.Equal(t, uint64(42), c.ID())
}

func TestSyncWriterKeepsLinesWhole(t *testing.T) {
	var buf bytes.Buffer
	sw := NewSyncWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := NewConn(uint64(n), sw)
			for j := 0; j < 20; j++ {
				_ = c.Exec(context.Background(), "ping", 0)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 160)
	for _, line := range lines {
		assert.Regexp(t, `^conn \d+: ping$`, line)
	}
}
