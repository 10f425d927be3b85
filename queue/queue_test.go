package queue

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDrainFIFOOrder(t *testing.T) {
	var q Queue
	var completed []string
	q.Enqueue([]byte("first"), func() { completed = append(completed, "first") })
	q.Enqueue([]byte("second"), func() { completed = append(completed, "second") })

	var buf bytes.Buffer
	require.NoError(t, q.Drain(&buf))
	require.Equal(t, "firstsecond", buf.String())
	require.Equal(t, []string{"first", "second"}, completed)
	require.True(t, q.Empty())
}

type partialWriter struct {
	bytesPerCall int
	written      bytes.Buffer
}

func (w *partialWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > w.bytesPerCall {
		n = w.bytesPerCall
	}
	w.written.Write(p[:n])
	return n, nil
}

func TestDrainResumesAfterShortWrite(t *testing.T) {
	var q Queue
	q.Enqueue([]byte("0123456789"), nil)
	w := &partialWriter{bytesPerCall: 3}

	require.NoError(t, q.Drain(w))
	require.False(t, q.Empty()) // short write: task still pending

	require.NoError(t, q.Drain(w))
	require.NoError(t, q.Drain(w))
	require.NoError(t, q.Drain(w))
	require.True(t, q.Empty())
	require.Equal(t, "0123456789", w.written.String())
}

type wouldBlockWriter struct{ allow int }

func (w *wouldBlockWriter) Write(p []byte) (int, error) {
	if w.allow <= 0 {
		return 0, ErrWouldBlock
	}
	n := w.allow
	if n > len(p) {
		n = len(p)
	}
	w.allow -= n
	return n, nil
}

func TestDrainStopsOnWouldBlockWithoutError(t *testing.T) {
	var q Queue
	completed := false
	q.Enqueue([]byte("hello"), func() { completed = true })
	w := &wouldBlockWriter{allow: 0}

	require.NoError(t, q.Drain(w))
	require.False(t, completed)
	require.Equal(t, 1, q.Len())
}

func TestDrainPropagatesHardError(t *testing.T) {
	var q Queue
	q.Enqueue([]byte("x"), nil)
	wantErr := errors.New("disk full")
	w := errWriter{err: wantErr}

	err := q.Drain(w)
	require.ErrorIs(t, err, wantErr)
}

type errWriter struct{ err error }

func (w errWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestDropDiscardsWithoutRunningCallbacks(t *testing.T) {
	var q Queue
	ran := false
	q.Enqueue([]byte("x"), func() { ran = true })
	q.Drop()
	require.True(t, q.Empty())
	require.False(t, ran)
}
