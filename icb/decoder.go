package icb

import "fmt"

// fragmentStride is the fixed byte span of a continuation fragment: one
// length byte plus fragmentDataSize+1 payload bytes (type + data).
const fragmentStride = 1 + 1 + fragmentDataSize

const (
	initialBufSize = 1024
	maxBufSize     = MaxLogicalMessage
)

// Decoder reassembles the inbound byte stream into complete logical
// messages, growing its rolling buffer by doubling as needed from an
// initial 1 KiB up to a 1 MiB ceiling.
type Decoder struct {
	buf    []byte
	filled int
	cursor int
}

// NewDecoder returns a Decoder with an empty 1 KiB rolling buffer.
func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, initialBufSize)}
}

// Feed appends freshly read bytes to the rolling buffer, growing it
// (doubling, up to maxBufSize, with one byte held in reserve for a
// possibly-missing trailing NUL) as needed. It is fatal for a single
// logical message to require more than maxBufSize bytes.
func (d *Decoder) Feed(p []byte) error {
	d.compact()
	needed := d.filled + len(p)
	for needed+1 > len(d.buf) {
		if len(d.buf) >= maxBufSize {
			return fmt.Errorf("icb: inbound message exceeds %d byte buffer ceiling", maxBufSize)
		}
		grown := len(d.buf) * 2
		if grown > maxBufSize {
			grown = maxBufSize
		}
		nb := make([]byte, grown)
		copy(nb, d.buf[:d.filled])
		d.buf = nb
	}
	copy(d.buf[d.filled:], p)
	d.filled += len(p)
	return nil
}

// compact discards already-consumed bytes preceding the cursor so the
// buffer doesn't grow unboundedly across many small messages.
func (d *Decoder) compact() {
	if d.cursor == 0 {
		return
	}
	copy(d.buf, d.buf[d.cursor:d.filled])
	d.filled -= d.cursor
	d.cursor = 0
}

// fragment describes one located wire fragment within the rolling buffer.
type fragment struct {
	typ         byte
	headerStart int // offset of this fragment's [length] byte
	dataStart   int
	dataLen     int // bytes after [length][type]
	continuing  bool
}

// Next attempts to decode one complete logical message starting at the
// cursor. It returns ok=false (no error) when fewer bytes have arrived
// than the message requires; codec errors (mismatched fragment types)
// are fatal.
func (d *Decoder) Next() (Message, bool, error) {
	avail := d.buf[d.cursor:d.filled]
	offset := 0
	var frags []fragment

	for {
		if offset >= len(avail) {
			return Message{}, false, nil
		}
		length := int(avail[offset])
		if length == 0 {
			if offset+fragmentStride > len(avail) {
				return Message{}, false, nil
			}
			frags = append(frags, fragment{
				typ:         avail[offset+1],
				headerStart: offset,
				dataStart:   offset + 2,
				dataLen:     fragmentDataSize,
				continuing:  true,
			})
			offset += fragmentStride
			continue
		}
		// Terminator fragment: [length][type][data: length-1 bytes].
		if offset+1+length > len(avail) {
			return Message{}, false, nil
		}
		frags = append(frags, fragment{
			typ:         avail[offset+1],
			headerStart: offset,
			dataStart:   offset + 2,
			dataLen:     length - 1,
		})
		offset += 1 + length
		break
	}

	typ := frags[0].typ
	for i, f := range frags {
		if f.typ != typ {
			return Message{}, false, fmt.Errorf("icb: message types messed up")
		}
		// A server may pad a continuation fragment's final data byte with
		// a spurious NUL just before the next fragment's header; when
		// that happens, the NUL isn't real payload and is dropped rather
		// than stitched into the reassembled message.
		if i > 0 && avail[f.headerStart-1] == 0 {
			frags[i-1].dataLen--
		}
	}

	total := 0
	for _, f := range frags {
		total += f.dataLen
	}

	payload := make([]byte, 0, total+1)
	for _, f := range frags {
		payload = append(payload, avail[f.dataStart:f.dataStart+f.dataLen]...)
	}
	if len(payload) == 0 || payload[len(payload)-1] != 0 {
		payload = append(payload, 0)
	}

	d.cursor += offset
	return Message{Type: typ, Payload: payload[:len(payload)-1]}, true, nil
}
