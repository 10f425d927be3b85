// Package queue implements an output task queue: a FIFO of pending byte
// buffers per output stream, partial-write accounting, and completion
// callbacks. oicb's fds are all non-blocking, so a write that can't
// finish in one call is requeued rather than waited on.
package queue

import (
	"errors"
	"io"
)

// ErrWouldBlock is returned by Writer implementations when a write
// cannot currently proceed; Drain treats it as "try again next tick".
var ErrWouldBlock = errors.New("queue: would block")

// Task is one pending output: bytes plus how much of it has already
// been written, and an optional callback run once it is fully drained.
type Task struct {
	Bytes      []byte
	BytesDone  int
	OnComplete func()
}

func (t *Task) remaining() []byte { return t.Bytes[t.BytesDone:] }
func (t *Task) done() bool        { return t.BytesDone >= len(t.Bytes) }

// Queue is a FIFO of Tasks for a single output stream. Only the head
// task may be partially written at any time.
type Queue struct {
	tasks []*Task
}

// Enqueue appends a new task to the tail of the queue.
func (q *Queue) Enqueue(bytes []byte, onComplete func()) {
	q.tasks = append(q.tasks, &Task{Bytes: bytes, OnComplete: onComplete})
}

// Empty reports whether the queue has no pending tasks.
func (q *Queue) Empty() bool { return len(q.tasks) == 0 }

// Len reports the number of pending tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// Drain repeatedly writes the head task's unwritten suffix to w. It
// returns on the first short write, would-block, or once the queue runs
// dry. A hard write error is returned to the caller, who decides
// (per-stream) whether that means aborting the process (stdout/socket)
// or latching a permanent failure (history files).
func (q *Queue) Drain(w io.Writer) error {
	for len(q.tasks) > 0 {
		head := q.tasks[0]
		n, err := w.Write(head.remaining())
		if n > 0 {
			head.BytesDone += n
		}
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return nil
			}
			return err
		}
		if !head.done() {
			// Short write: resume this same task next call.
			return nil
		}
		q.tasks = q.tasks[1:]
		if head.OnComplete != nil {
			head.OnComplete()
		}
	}
	return nil
}

// Drop discards all pending tasks without running their callbacks —
// used when a history file entry latches a permanent error.
func (q *Queue) Drop() {
	q.tasks = nil
}
