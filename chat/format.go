// Package chat renders inbound chat-like and command-reply messages
// into timestamped, escape-safe terminal lines, and dispatches
// command-result sub-messages to their own formatting.
package chat

import (
	"fmt"
	"time"
)

// delims holds the pre/post text wrapped around a message's author for
// each chat-like message type.
type delims struct{ pre, post string }

var chatDelims = map[byte]delims{
	'b': {" <", "> "},
	'c': {" *", "* "},
	'd': {" [=", "=] "},
	'e': {" !", "! "},
	'k': {" !", "! "},
	'f': {" {", "} "},
}

// Render formats one inbound chat-like message. author and text are the
// raw (not yet escape-encoded) fields from the message payload.
func Render(typ byte, author, text string, now time.Time) (string, bool) {
	d, ok := chatDelims[typ]
	if !ok {
		return "", false
	}
	ts := now.Format("[15:04:05]")
	return ts + d.pre + VisibleEncode(author) + d.post + VisibleEncode(text) + "\n", true
}

// VisibleEncode escapes control and non-printable bytes into a
// terminal-safe representation, preserving literal backslashes.
func VisibleEncode(s string) string {
	out := make([]byte, 0, len(s)*4)
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\\':
			out = append(out, '\\', '\\')
		case b == '\n':
			out = append(out, '\\', 'n')
		case b == '\t':
			out = append(out, '\\', 't')
		case b == '\r':
			out = append(out, '\\', 'r')
		case b < 0x20 || b == 0x7f:
			out = append(out, []byte(fmt.Sprintf("\\x%02x", b))...)
		case b >= 0x80:
			out = append(out, []byte(fmt.Sprintf("\\%03o", b))...)
		default:
			out = append(out, b)
		}
	}
	return string(out)
}

// UnsupportedTypeLine renders the tier-1 recovery line for an unknown
// inbound message type.
func UnsupportedTypeLine(typ byte) string {
	return fmt.Sprintf("unsupported message of type '%c'\n", typ)
}
