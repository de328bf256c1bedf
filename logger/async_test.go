package logger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterDropsWhenFull(t *testing.T) {
	t.Parallel()

	sink := &lockedBuffer{}
	w := NewAsyncWriter(sink, 2)

	for _, line := range []string{"one\n", "two\n", "three\n"} {
		n, err := w.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	assert.Equal(t, uint64(1), w.Dropped())

	// nothing reaches the sink until the consumer runs
	assert.Empty(t, sink.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, "one\ntwo\n", sink.String())
}

func TestAsyncWriterRun(t *testing.T) {
	t.Parallel()

	sink := &lockedBuffer{}
	w := NewAsyncWriter(sink, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx) }()

	buf := []byte("beat\n")
	_, err := w.Write(buf)
	require.NoError(t, err)
	// the writer must not keep a reference to the caller's buffer
	copy(buf, "XXXX\n")

	require.Eventually(t, func() bool {
		return sink.String() == "beat\n"
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) { return 0, errors.New("stderr closed") }

func TestAsyncWriterCountsWriteErrors(t *testing.T) {
	t.Parallel()

	w := NewAsyncWriter(brokenSink{}, 4)
	for _, line := range []string{"one\n", "two\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, uint64(2), w.WriteErrors())
	assert.Zero(t, w.Dropped())
}

func TestSetLevel(t *testing.T) {
	require.Error(t, SetLevel("loud"))
	require.NoError(t, SetLevel("debug"))
	assert.True(t, GetProjectLogger().Logger.IsLevelEnabled(logrus.DebugLevel))
	require.NoError(t, SetLevel("info"))
}
