// Package editor implements a minimal line editor and the bridge that
// puts stdin into raw mode for it. The editor is driven synchronously,
// one character at a time, by the single-threaded event loop.
package editor

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// Line is a minimal single-line text editor: a rune buffer plus a point
// (cursor position) and a mark. It understands enough control characters
// to be usable (backspace, ^U, ^W, ^T) but is not a full readline.
type Line struct {
	buf   []rune
	point int
	mark  int
}

// New returns an empty Line.
func New() *Line { return &Line{} }

// snapshot is a saved buffer/point/mark triple. At most one
// is outstanding at a time per the stated invariant.
type snapshot struct {
	buf   []rune
	point int
	mark  int
}

// Bridge owns the raw terminal mode and the save/redraw/restore dance
// around asynchronous stdout writes.
type Bridge struct {
	line      *Line
	oldState  *term.State
	rawActive bool
	saved     *snapshot
}

// NewBridge constructs a Bridge over a fresh Line.
func NewBridge() *Bridge {
	return &Bridge{line: New()}
}

// EnterRaw puts stdin into cbreak/raw mode so the editor receives one
// byte at a time.
func (b *Bridge) EnterRaw() error {
	state, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("editor: enter raw mode: %w", err)
	}
	b.oldState = state
	b.rawActive = true
	return nil
}

// ExitRaw restores the terminal's original mode. Safe to call more than
// once or when raw mode was never entered.
func (b *Bridge) ExitRaw() {
	if !b.rawActive {
		return
	}
	term.Restore(int(os.Stdin.Fd()), b.oldState)
	b.rawActive = false
}

// Line returns the editor's line buffer.
func (b *Bridge) Line() *Line { return b.line }

// Feed delivers one input byte to the line editor. It returns a
// completed line (without trailing newline) and true when the user
// pressed Enter.
func (b *Bridge) Feed(c byte) (string, bool) {
	switch c {
	case '\r', '\n':
		s := string(b.line.buf)
		b.line.buf = b.line.buf[:0]
		b.line.point = 0
		b.line.mark = 0
		b.redraw()
		return s, true
	case 0x7f, 0x08: // backspace / DEL
		b.line.backspace()
	case 0x15: // ^U: kill to start of line
		b.line.killToStart()
	case 0x17: // ^W: kill previous word
		b.line.killWordBack()
	case 0x14: // ^T: transpose chars
		b.line.transpose()
	default:
		if c >= 0x20 && c < 0x7f {
			b.line.insert(rune(c))
		}
	}
	b.redraw()
	return "", false
}

func (l *Line) insert(r rune) {
	l.buf = append(l.buf, 0)
	copy(l.buf[l.point+1:], l.buf[l.point:])
	l.buf[l.point] = r
	l.point++
}

func (l *Line) backspace() {
	if l.point == 0 {
		return
	}
	copy(l.buf[l.point-1:], l.buf[l.point:])
	l.buf = l.buf[:len(l.buf)-1]
	l.point--
}

func (l *Line) killToStart() {
	l.buf = l.buf[l.point:]
	l.point = 0
}

func (l *Line) killWordBack() {
	i := l.point
	for i > 0 && l.buf[i-1] == ' ' {
		i--
	}
	for i > 0 && l.buf[i-1] != ' ' {
		i--
	}
	l.buf = append(l.buf[:i], l.buf[l.point:]...)
	l.point = i
}

func (l *Line) transpose() {
	p := l.point
	if p == len(l.buf) {
		p-- // at end of line: swap the last two characters
	}
	if p < 1 {
		return
	}
	l.buf[p-1], l.buf[p] = l.buf[p], l.buf[p-1]
}

// String returns the current (uncommitted) buffer contents.
func (l *Line) String() string { return string(l.buf) }

func (b *Bridge) redraw() {
	fmt.Fprint(os.Stdout, "\r\x1b[K"+string(b.line.buf))
	if back := len(b.line.buf) - b.line.point; back > 0 {
		fmt.Fprintf(os.Stdout, "\x1b[%dD", back)
	}
}

// Save snapshots the editor's buffer, point and mark and blanks the
// visible line, ahead of an asynchronous stdout write.
// Panics if a snapshot is already outstanding, since at most one may be
// outstanding at a time.
func (b *Bridge) Save() {
	if b.saved != nil {
		panic("editor: Save called with a snapshot already outstanding")
	}
	buf := make([]rune, len(b.line.buf))
	copy(buf, b.line.buf)
	b.saved = &snapshot{buf: buf, point: b.line.point, mark: b.line.mark}
	fmt.Fprint(os.Stdout, "\r\x1b[K")
}

// Restore reinstates the saved buffer, point and mark and redraws the
// line, after the stdout drain that followed Save completes.
func (b *Bridge) Restore() {
	if b.saved == nil {
		return
	}
	b.line.buf = b.saved.buf
	b.line.point = b.saved.point
	b.line.mark = b.saved.mark
	b.saved = nil
	b.redraw()
}
