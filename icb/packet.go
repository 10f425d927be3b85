package icb

import (
	"fmt"
	"strings"
)

// fragmentDataSize is the number of data bytes (after the length and type
// bytes) carried by a zero-length ("continuation") extended-mode fragment.
const fragmentDataSize = 254

// maxLegacyData is the largest data portion (type + payload + NUL) a
// single non-extended packet may carry; legacy packets never use the
// length=0 continuation sentinel and top out at 254 bytes.
const maxLegacyData = 254

// EncodeCommandLine turns the text typed after a leading '/' into an
// h-type payload: the first space or tab after the command name is
// replaced with FieldSep, so "m bob hi" becomes "m\x01bob hi".
// Everything else in the line, including any later whitespace, is left
// untouched. A
// command with no following whitespace (e.g. "/help") is sent as-is.
func EncodeCommandLine(cmd string) []byte {
	i := strings.IndexAny(cmd, " \t")
	if i < 0 {
		return []byte(cmd)
	}
	out := make([]byte, len(cmd))
	copy(out, cmd)
	out[i] = FieldSep
	return out
}

// EncodePacket serializes one already-sized fragment: [length][type][data].
func EncodePacket(t byte, data []byte) ([]byte, error) {
	length := len(data) + 1
	if length > 255 {
		return nil, fmt.Errorf("icb: fragment data too large (%d bytes)", len(data))
	}
	out := make([]byte, 0, 2+len(data))
	out = append(out, byte(length), t)
	out = append(out, data...)
	return out, nil
}

// EncodeExtended fragments payload (without its trailing NUL) using the
// "extended" continuation scheme: every packet but the last carries a
// zero length byte and exactly fragmentDataSize data bytes; the final
// packet's length byte is (N mod 254)+1 where N is len(payload)+1 (the
// mandatory trailing NUL). This intentionally reproduces the original's
// degenerate empty final fragment when N is an exact multiple of 254 —
// see DESIGN.md's Open Question notes.
func EncodeExtended(t byte, payload []byte) ([][]byte, error) {
	full := append(append([]byte(nil), payload...), 0)
	n := len(full)

	continuations := n / fragmentDataSize
	finalLen := n % fragmentDataSize

	packets := make([][]byte, 0, continuations+1)
	off := 0
	for i := 0; i < continuations; i++ {
		chunk := full[off : off+fragmentDataSize]
		off += fragmentDataSize
		packet := make([]byte, 0, 2+fragmentDataSize)
		packet = append(packet, 0, t)
		packet = append(packet, chunk...)
		packets = append(packets, packet)
	}
	lastData := full[off:]
	if len(lastData) != finalLen {
		return nil, fmt.Errorf("icb: internal fragmentation accounting error")
	}
	finalPacket := make([]byte, 0, 2+len(lastData))
	finalPacket = append(finalPacket, byte(finalLen+1), t)
	finalPacket = append(finalPacket, lastData...)
	packets = append(packets, finalPacket)
	return packets, nil
}

// EncodeLegacy fragments (type, payload) into one or more standalone
// legacy packets. nick is the client's own nickname, used to
// reserve headroom for the server to prefix a sender nick onto the
// packet without overflowing 255 bytes.
func EncodeLegacy(t byte, payload []byte, nick string) ([][]byte, error) {
	common, text := splitCommonPrefix(t, payload)
	isPrivMsg := t == TypeCommand && len(payload) >= 2 && payload[0] == 'm' && payload[1] == FieldSep

	limit := 253 - len(nick) - len(common)
	if limit < 1 {
		limit = 1
	}

	preferBreak := t == TypeOpen || isPrivMsg
	chunks := chunkText(text, limit, preferBreak)

	packets := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		data := make([]byte, 0, len(common)+len(chunk)+1)
		data = append(data, common...)
		data = append(data, chunk...)
		data = append(data, 0)
		if len(data)+1 > 255 {
			return nil, fmt.Errorf("icb: legacy fragment overflow (%d bytes)", len(data))
		}
		packet := make([]byte, 0, 2+len(data))
		packet = append(packet, byte(len(data)+1), t)
		packet = append(packet, data...)
		packets = append(packets, packet)
	}
	return packets, nil
}

// splitCommonPrefix extracts the addressee common prefix for private
// message commands (type 'h', payload beginning "m\x01"). The addressee
// is everything up to the first space after the command field, bounded
// by NicknameMax+3 bytes; the returned common prefix includes that space.
func splitCommonPrefix(t byte, payload []byte) (common, text []byte) {
	if t != TypeCommand {
		return nil, payload
	}
	if len(payload) < 2 || payload[0] != 'm' || payload[1] != FieldSep {
		return nil, payload
	}
	rest := payload[2:]
	bound := NicknameMax + 3
	if bound > len(rest) {
		bound = len(rest)
	}
	spaceIdx := -1
	for i := 0; i < bound; i++ {
		if rest[i] == ' ' {
			spaceIdx = i
			break
		}
	}
	if spaceIdx < 0 {
		return nil, payload
	}
	prefixLen := 2 + spaceIdx + 1 // "m\x01" + addressee + space
	return payload[:prefixLen], payload[prefixLen:]
}

// chunkText splits text into pieces no longer than limit. When
// preferBreak is set and a chunk would otherwise land exactly on the
// limit with more text remaining, the split point is walked back to the
// nearest whitespace or punctuation byte (scanning right-to-left from
// the limit), falling back to a hard break at the limit when none is
// found.
func chunkText(text []byte, limit int, preferBreak bool) [][]byte {
	if len(text) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	pos := 0
	for pos < len(text) {
		end := pos + limit
		if end >= len(text) {
			chunks = append(chunks, text[pos:])
			break
		}
		brk := end
		if preferBreak {
			if idx := lastBreakableIndex(text[pos:end], end-pos); idx >= 0 {
				brk = pos + idx + 1
			}
		}
		chunks = append(chunks, text[pos:brk])
		pos = brk
	}
	return chunks
}

// lastBreakableIndex scans window right-to-left for a whitespace or
// punctuation byte, returning its index within window, or -1.
func lastBreakableIndex(window []byte, n int) int {
	for i := n - 1; i >= 0; i-- {
		if isBreakable(window[i]) {
			return i
		}
	}
	return -1
}

func isBreakable(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', ',', '.', ';', ':', '!', '?', '-':
		return true
	default:
		return false
	}
}
