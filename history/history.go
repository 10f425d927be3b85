// Package history implements a per-room/per-peer append-only transcript
// log: one lazily-opened, append-only file per (server, room-or-peer)
// pair, opened with O_CREATE|O_WRONLY|O_APPEND after os.MkdirAll on the
// parent directory.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"oicb/queue"
)

// Kind distinguishes a room transcript from a private (peer) transcript.
type Kind byte

const (
	KindRoom    Kind = 'b'
	KindPrivate Kind = 'c'
)

// entry is one lazily-opened history file.
type entry struct {
	path         string
	fd           *os.File
	queue        queue.Queue
	lastActivity time.Time
	permError    bool
}

// Writer owns the registry of history-file entries for one server
// connection. It is single-owner, driven entirely by the event loop:
// no locking, no reference counting.
type Writer struct {
	enabled bool
	root    string // $HOME/.oicb/logs/<server>
	room    string
	entries map[string]*entry
}

// NewWriter returns a Writer rooted at $HOME/.oicb/logs/<server>. When
// enabled is false, Append is a no-op (the -H flag).
func NewWriter(home, server, room string, enabled bool) *Writer {
	return &Writer{
		enabled: enabled,
		root:    filepath.Join(home, ".oicb", "logs", server),
		room:    room,
		entries: make(map[string]*entry),
	}
}

func (w *Writer) pathFor(kind Kind, who string) string {
	if kind != KindPrivate {
		who = w.room
		return filepath.Join(w.root, "room-"+who+".log")
	}
	return filepath.Join(w.root, "private-"+who+".log")
}

// Append enqueues one formatted transcript line for (kind, who). It
// never blocks: directory creation happens here (cheap, rare), but the
// actual write is queued and drained by Drain.
func (w *Writer) Append(kind Kind, who, text string) error {
	if !w.enabled {
		return nil
	}
	path := w.pathFor(kind, who)
	e, ok := w.entries[path]
	if !ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
			return fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
		}
		e = &entry{path: path}
		w.entries[path] = e
	}
	if e.permError {
		return nil
	}
	line := fmt.Sprintf("%s %s: %s\n", time.Now().Format("2006-01-02 15:04:05"), who, text)
	e.queue.Enqueue([]byte(line), nil)
	return nil
}

// Drain drains every entry's pending writes, opening fds lazily on
// first use, latching permError and dropping queued work on failure,
// and pruning entries that have gone idle.
func (w *Writer) Drain(now time.Time) {
	for path, e := range w.entries {
		if e.permError {
			continue
		}
		if e.fd == nil && !e.queue.Empty() {
			fd, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY|unix.O_NONBLOCK, 0o644)
			if err != nil {
				e.permError = true
				e.queue.Drop()
				continue
			}
			e.fd = fd
		}
		if e.fd != nil && !e.queue.Empty() {
			if err := e.queue.Drain(e.fd); err != nil {
				e.permError = true
				e.queue.Drop()
				if e.fd != nil {
					e.fd.Close()
					e.fd = nil
				}
				continue
			}
			e.lastActivity = now
		}
		if e.queue.Empty() && e.lastActivity.Before(now) {
			if e.fd != nil {
				e.fd.Close()
			}
			delete(w.entries, path)
		}
	}
}

// PendingWriteFDs returns the fds of entries with non-empty queues, for
// the event loop's pollset.
func (w *Writer) PendingWriteFDs() []uintptr {
	var fds []uintptr
	for _, e := range w.entries {
		if e.fd != nil && !e.queue.Empty() {
			fds = append(fds, e.fd.Fd())
		}
	}
	return fds
}
