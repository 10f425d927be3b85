package icb

import "fmt"

// Phase is the connection's position in the protocol handshake/operation
// sequence.
type Phase int

const (
	Connecting Phase = iota
	Connected
	LoginSent
	Chat
	CommandSent
)

func (p Phase) String() string {
	switch p {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case LoginSent:
		return "LoginSent"
	case Chat:
		return "Chat"
	case CommandSent:
		return "CommandSent"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var permitted = map[Phase]map[byte]bool{
	Connecting: {},
	Connected:  {TypeProtocol: true},
	LoginSent:  {TypeLogin: true},
	Chat: {
		TypeOpen: true, TypePrivate: true, TypeStatus: true, TypeError: true,
		TypeImportant: true, TypeExit: true, TypeCommandOut: true, TypeBeep: true,
		TypePing: true, TypePong: true, TypeNoop: true,
	},
	CommandSent: {
		TypeOpen: true, TypePrivate: true, TypeImportant: true,
		TypeError: true, TypeCommandOut: true,
	},
}

// ErrFatalProtocol is a protocol error that is always fatal:
// exit code 2.
type ErrFatalProtocol struct {
	Msg string
}

func (e *ErrFatalProtocol) Error() string { return e.Msg }

func fatalf(format string, args ...any) error {
	return &ErrFatalProtocol{Msg: fmt.Sprintf(format, args...)}
}

// Permitted reports whether a message of type t may legally arrive while
// in phase p.
func Permitted(p Phase, t byte) bool {
	return permitted[p][t]
}

// CheckInbound enforces phase safety: any inbound message of a type not
// permitted for the current phase is fatal, except that Chat-only types
// (open, private, status, important) arriving during CommandSent revert
// the phase to Chat rather than being rejected.
func CheckInbound(p Phase, t byte) error {
	if p == CommandSent {
		switch t {
		case TypeOpen, TypePrivate, TypeStatus, TypeImportant:
			return nil
		}
	}
	if !Permitted(p, t) {
		return fatalf("unexpected message type %q in phase %s", t, p)
	}
	return nil
}
