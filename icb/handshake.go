package icb

import "bytes"

// SupportedProtocolVersion is the only protocol version oicb speaks.
const SupportedProtocolVersion = "1"

// UndefinedPingMessage is the server error text that causes the Ping
// feature bit to be cleared.
const UndefinedPingMessage = "Undefined message type 108"

// ParseProtocolHandshake splits an inbound 'j' message's payload into
// its three \x01-separated fields and validates the protocol version.
func ParseProtocolHandshake(payload []byte) (version, hostID, serverID string, err error) {
	fields := splitByte(payload, FieldSep)
	if len(fields) < 1 {
		return "", "", "", fatalf("malformed protocol handshake")
	}
	version = string(fields[0])
	if len(fields) > 1 {
		hostID = string(fields[1])
	}
	if len(fields) > 2 {
		serverID = string(fields[2])
	}
	if version != SupportedProtocolVersion {
		return "", "", "", fatalf("unsupported protocol version %q", version)
	}
	return version, hostID, serverID, nil
}

// IsUndefinedPingError reports whether an error message's payload is the
// exact server string that signals absent ping support.
func IsUndefinedPingError(payload []byte) bool {
	return bytes.Equal(payload, []byte(UndefinedPingMessage))
}
