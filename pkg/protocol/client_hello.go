// ClientHello message codec.
//
// Body format (RFC 5246 §7.4.1.2):
//
//	+---------+--------+--------------+-----------+---------------+--------------+--------------+
//	| Version | Random | SessionIDLen | SessionID | CipherSuites  | Compressions | [Extensions] |
//	| 2B      | 32B    | 1B (≤32)     | 0..32B    | u16-prefixed  | u8-prefixed  | optional     |
//	+---------+--------+--------------+-----------+---------------+--------------+--------------+
package protocol

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// ClientHello is the decoded form of a ClientHello body.
type ClientHello struct {
	// Version is the highest protocol version the client offers.
	Version Version

	// Random is the 32-byte client random (4-byte GMT time + 28 random).
	Random [constants.RandomSize]byte

	// SessionID is empty in this implementation; decoded for completeness.
	SessionID []byte

	// CipherSuites are the offered suites in client preference order.
	CipherSuites []CipherSuite

	// Extensions holds the raw decoded extensions, nil when absent.
	Extensions []Extension
}

// Marshal encodes the ClientHello body (without the handshake header).
func (m *ClientHello) Marshal() ([]byte, error) {
	if len(m.SessionID) > constants.MaxSessionIDSize {
		return nil, qerrors.ErrBadSessionID
	}
	if len(m.CipherSuites) == 0 {
		return nil, fmt.Errorf("%w: no cipher suites offered", qerrors.ErrBadMessage)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(m.Version.Major())
	b.AddUint8(m.Version.Minor())
	b.AddBytes(m.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.SessionID)
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range m.CipherSuites {
			b.AddUint16(uint16(cs))
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(0) // NULL compression only
	})
	AddExtensions(b, m.Extensions)
	return b.Bytes()
}

// UnmarshalClientHello decodes a ClientHello body. The client must offer at
// least one cipher suite and the NULL compression method.
func UnmarshalClientHello(data []byte) (*ClientHello, error) {
	s := cryptobyte.String(data)
	m := &ClientHello{}

	var major, minor uint8
	if !s.ReadUint8(&major) || !s.ReadUint8(&minor) {
		return nil, fmt.Errorf("%w: truncated client hello version", qerrors.ErrBadMessage)
	}
	m.Version = VersionFromWire(major, minor)

	if !s.CopyBytes(m.Random[:]) {
		return nil, fmt.Errorf("%w: truncated client random", qerrors.ErrBadMessage)
	}

	var sessionID cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&sessionID) {
		return nil, fmt.Errorf("%w: truncated session id", qerrors.ErrBadMessage)
	}
	if len(sessionID) > constants.MaxSessionIDSize {
		return nil, qerrors.ErrBadSessionID
	}
	if len(sessionID) > 0 {
		m.SessionID = make([]byte, len(sessionID))
		copy(m.SessionID, sessionID)
	}

	var suites cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&suites) || len(suites)%2 != 0 || len(suites) == 0 {
		return nil, fmt.Errorf("%w: malformed cipher suite list", qerrors.ErrBadMessage)
	}
	for !suites.Empty() {
		var suite uint16
		suites.ReadUint16(&suite)
		m.CipherSuites = append(m.CipherSuites, CipherSuite(suite))
	}

	var compressions cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&compressions) || len(compressions) == 0 {
		return nil, fmt.Errorf("%w: malformed compression list", qerrors.ErrBadMessage)
	}
	nullSeen := false
	for _, c := range compressions {
		if c == 0 {
			nullSeen = true
		}
	}
	if !nullSeen {
		return nil, qerrors.ErrBadCompression
	}

	if len(s) < 2 {
		return m, nil
	}
	var extSize uint16
	if !s.ReadUint16(&extSize) {
		return nil, qerrors.ErrBadExtensions
	}
	if int(extSize) > len(s) {
		return nil, qerrors.ErrBadExtensions
	}
	block := make([]byte, 2+extSize)
	block[0] = byte(extSize >> 8)
	block[1] = byte(extSize)
	copy(block[2:], s[:extSize])
	exts, err := ParseExtensions(block)
	if err != nil {
		return nil, err
	}
	m.Extensions = exts
	return m, nil
}
