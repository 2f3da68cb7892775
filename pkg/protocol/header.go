// Handshake message header codec.
//
// Wire format (RFC 5246 §7.4):
//
//	+------+-----------------+
//	| Type | Length (u24 BE) |
//	| 1B   | 3B              |
//	+------+-----------------+
package protocol

import (
	"fmt"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// PutHandshakeHeader writes a handshake header into hdr, which must be at
// least HandshakeHeaderSize bytes.
func PutHandshakeHeader(hdr []byte, t HandshakeType, length int) {
	hdr[0] = byte(t)
	hdr[1] = byte(length >> 16)
	hdr[2] = byte(length >> 8)
	hdr[3] = byte(length)
}

// ParseHandshakeHeader decodes a handshake header and validates the length
// against the reassembly cap.
func ParseHandshakeHeader(hdr []byte) (HandshakeType, int, error) {
	if len(hdr) < constants.HandshakeHeaderSize {
		return 0, 0, fmt.Errorf("%w: truncated handshake header", qerrors.ErrBadMessage)
	}
	t := HandshakeType(hdr[0])
	length := int(hdr[1])<<16 | int(hdr[2])<<8 | int(hdr[3])
	if length > constants.MaxHandshakeMessageSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", qerrors.ErrMessageTooLarge, length)
	}
	return t, length, nil
}
