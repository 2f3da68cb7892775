// ServerHello message codec.
//
// Body format (RFC 5246 §7.4.1.3):
//
//	+---------+--------+---------------+-----------+--------------+-------------+--------------+
//	| Version | Random | SessionIDLen  | SessionID | CipherSuite  | Compression | [Extensions] |
//	| 2B      | 32B    | 1B (≤32)      | 0..32B    | 2B           | 1B (=0)     | optional     |
//	+---------+--------+---------------+-----------+--------------+-------------+--------------+
//
// The extensions block is omitted entirely when fewer than two bytes follow
// the compression method; a single stray trailing byte is tolerated and
// ignored, matching deployed implementations.
package protocol

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// ServerHello is the decoded form of a ServerHello body.
type ServerHello struct {
	// Version is the server's selected protocol version.
	Version Version

	// Random is the 32-byte server random (4-byte GMT time + 28 random).
	Random [constants.RandomSize]byte

	// SessionID is empty in this implementation; decoded for completeness.
	SessionID []byte

	// CipherSuite is the server's selected suite.
	CipherSuite CipherSuite

	// Extensions holds the raw decoded extensions, nil when absent.
	Extensions []Extension
}

// Marshal encodes the ServerHello body (without the handshake header).
func (m *ServerHello) Marshal() ([]byte, error) {
	if len(m.SessionID) > constants.MaxSessionIDSize {
		return nil, qerrors.ErrBadSessionID
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(m.Version.Major())
	b.AddUint8(m.Version.Minor())
	b.AddBytes(m.Random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.SessionID)
	})
	b.AddUint16(uint16(m.CipherSuite))
	b.AddUint8(0) // NULL compression
	AddExtensions(b, m.Extensions)
	return b.Bytes()
}

// UnmarshalServerHello decodes a ServerHello body. Structural rules are
// enforced here (session id bound, NULL compression, extensions sizing);
// version and cipher policy belong to the connection driver.
func UnmarshalServerHello(data []byte) (*ServerHello, error) {
	s := cryptobyte.String(data)
	m := &ServerHello{}

	var major, minor uint8
	if !s.ReadUint8(&major) || !s.ReadUint8(&minor) {
		return nil, fmt.Errorf("%w: truncated server hello version", qerrors.ErrBadMessage)
	}
	m.Version = VersionFromWire(major, minor)

	if !s.CopyBytes(m.Random[:]) {
		return nil, fmt.Errorf("%w: truncated server random", qerrors.ErrBadMessage)
	}

	var sessionIDLen uint8
	if !s.ReadUint8(&sessionIDLen) {
		return nil, fmt.Errorf("%w: truncated session id length", qerrors.ErrBadMessage)
	}
	if sessionIDLen > constants.MaxSessionIDSize {
		return nil, qerrors.ErrBadSessionID
	}
	var sessionID []byte
	if !s.ReadBytes(&sessionID, int(sessionIDLen)) {
		return nil, fmt.Errorf("%w: truncated session id", qerrors.ErrBadMessage)
	}
	if sessionIDLen > 0 {
		m.SessionID = make([]byte, sessionIDLen)
		copy(m.SessionID, sessionID)
	}

	var suite uint16
	if !s.ReadUint16(&suite) {
		return nil, fmt.Errorf("%w: truncated cipher suite", qerrors.ErrBadMessage)
	}
	m.CipherSuite = CipherSuite(suite)

	var compression uint8
	if !s.ReadUint8(&compression) {
		return nil, fmt.Errorf("%w: truncated compression method", qerrors.ErrBadMessage)
	}
	if compression != 0 {
		return nil, qerrors.ErrBadCompression
	}

	// Fewer than two remaining bytes means no extensions block.
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
