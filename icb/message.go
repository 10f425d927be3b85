// Package icb implements the ICB (Internet CB) wire protocol: logical
// message framing, fragmentation/defragmentation, the connection phase
// machine, and the session data model.
package icb

import "fmt"

// Message type bytes, as sent on the wire.
const (
	TypeLogin       byte = 'a' // login / login ack
	TypeOpen        byte = 'b' // open (room) message
	TypePrivate     byte = 'c' // private message
	TypeStatus      byte = 'd' // status message
	TypeError       byte = 'e' // error message
	TypeImportant   byte = 'f' // important/wall message
	TypeExit        byte = 'g' // server-initiated exit
	TypeCommand     byte = 'h' // command from client
	TypeCommandOut  byte = 'i' // command output
	TypeProtocol    byte = 'j' // protocol/version handshake
	TypeBeep        byte = 'k' // beep
	TypePing        byte = 'l' // ping
	TypePong        byte = 'm' // pong
	TypeNoop        byte = 'n' // no-op keep-alive
)

// FieldSep separates fields within a logical message's payload.
const FieldSep = 0x01

// MaxLogicalMessage is the codec buffer ceiling: any logical
// message larger than this is fatal.
const MaxLogicalMessage = 1 << 20 // 1 MiB

// NicknameMax bounds the addressee field replayed as a common prefix when
// fragmenting private-message commands.
const NicknameMax = 64

// Message is one reassembled logical ICB message: a single-byte type and
// an opaque payload. Fields within Payload, if any, are separated by
// FieldSep; Message itself knows nothing about that structure.
type Message struct {
	Type    byte
	Payload []byte
}

// Fields splits the payload on FieldSep, the way every structured ICB
// message (login, protocol handshake, wl/wg rows, ...) is laid out.
func (m Message) Fields() [][]byte {
	return splitByte(m.Payload, FieldSep)
}

func splitByte(b []byte, sep byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == sep {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	out = append(out, b[start:])
	return out
}

func (m Message) String() string {
	return fmt.Sprintf("Message{%q, %d bytes}", m.Type, len(m.Payload))
}
