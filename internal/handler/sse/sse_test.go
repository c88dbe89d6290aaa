package sse

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_WriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	s, err := NewStream(rec)
	require.NoError(t, err)

	require.NoError(t, s.WriteEvent("change", map[string]string{"documentId": "d1"}))
	require.NoError(t, s.WriteKeepAlive())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: change\ndata: {\"documentId\":\"d1\"}\n\n: keepalive\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

type countingWriter struct {
	n    atomic.Int32
	fail bool
}

func (c *countingWriter) WriteKeepAlive() error {
	c.n.Add(1)
	if c.fail {
		return errors.New("closed")
	}
	return nil
}

func TestTickerKeepAlive_PingsUntilStopped(t *testing.T) {
	w := &countingWriter{}
	k := NewTickerKeepAlive(5 * time.Millisecond)
	stopped := k.Start(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Eventually(t, func() bool { return w.n.Load() >= 2 }, time.Second, time.Millisecond)

	k.Stop()
	k.Stop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("keep-alive did not stop")
	}
}

func TestTickerKeepAlive_StopsOnWriteError(t *testing.T) {
	w := &countingWriter{fail: true}
	k := NewTickerKeepAlive(5 * time.Millisecond)
	stopped := k.Start(w, slog.New(slog.NewTextHandler(io.Discard, nil)))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("keep-alive should stop after a failed write")
	}
	assert.Equal(t, int32(1), w.n.Load())
}
