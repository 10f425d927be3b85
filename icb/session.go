package icb

import "time"

// Features is a bitset of optional server capabilities.
type Features uint8

const (
	FeaturePing Features = 1 << iota
	FeatureExtended
)

func (f Features) Has(bit Features) bool { return f&bit != 0 }

// Session holds the mutable per-connection state the event loop threads
// through the rest of the engine. It has no mutators beyond the single
// owning event loop.
type Session struct {
	Nick            string
	Hostname        string
	Room            string
	Features        Features
	Phase           Phase
	LastInboundTime time.Time
	PingsOutstanding int

	// LastCmdHasNL is correct as a single flag only because
	// CheckInbound's phase machine guarantees at most one outstanding
	// command at a time, so a per-command map is unnecessary.
	LastCmdHasNL bool
}

// NewSession seeds a session with Ping assumed supported and Extended
// unset.
func NewSession(nick, hostname, room string) *Session {
	return &Session{
		Nick:     nick,
		Hostname: hostname,
		Room:     room,
		Features: FeaturePing,
		Phase:    Connecting,
	}
}

// Touch resets the keep-alive bookkeeping on any inbound byte.
func (s *Session) Touch(now time.Time) {
	s.LastInboundTime = now
	s.PingsOutstanding = 0
}

// ClearPing clears the Ping feature bit — done once the server responds
// with "Undefined message type 108".
func (s *Session) ClearPing() {
	s.Features &^= FeaturePing
}

// LoginPayload builds the login packet payload: nick\x01nick\x01room\x01login\x01
func (s *Session) LoginPayload() []byte {
	b := []byte(s.Nick)
	b = append(b, FieldSep)
	b = append(b, []byte(s.Nick)...)
	b = append(b, FieldSep)
	b = append(b, []byte(s.Room)...)
	b = append(b, FieldSep)
	b = append(b, []byte("login")...)
	b = append(b, FieldSep)
	return b
}
