// SSLv2-format ClientHello codec.
//
// Old clients open with an SSLv2-framed ClientHello even when offering
// SSLv3 or TLS. The record layer strips the five header bytes
// (two length bytes with the high bit set, message type, and the offered
// version pair); this decoder handles the remaining body:
//
//	+------------------+----------------+---------------+--------------+-----------+-----------+
//	| CipherSpecsLen   | SessionIDLen   | ChallengeLen  | CipherSpecs  | SessionID | Challenge |
//	| 2B               | 2B             | 2B            | 3B each      | var       | ≤32B      |
//	+------------------+----------------+---------------+--------------+-----------+-----------+
//
// Cipher specs are three bytes; specs with a zero first byte carry an
// SSLv3/TLS suite in the low two bytes. The challenge is right-aligned into
// the 32-byte client random.
package protocol

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// SSLv2ClientHello is the decoded form of an SSLv2-framed ClientHello.
type SSLv2ClientHello struct {
	// Version is the SSLv3/TLS version the client actually offers.
	Version Version

	// Random is the challenge, right-aligned into 32 bytes.
	Random [constants.RandomSize]byte

	// CipherSuites are the SSLv3/TLS suites extracted from the cipher specs.
	CipherSuites []CipherSuite
}

// UnmarshalSSLv2ClientHello decodes an SSLv2 ClientHello from the version
// bytes preserved out of the record header and the record body.
func UnmarshalSSLv2ClientHello(versionMajor, versionMinor uint8, body []byte) (*SSLv2ClientHello, error) {
	m := &SSLv2ClientHello{Version: VersionFromWire(versionMajor, versionMinor)}

	s := cryptobyte.String(body)
	var cipherSpecsLen, sessionIDLen, challengeLen uint16
	if !s.ReadUint16(&cipherSpecsLen) || !s.ReadUint16(&sessionIDLen) || !s.ReadUint16(&challengeLen) {
		return nil, fmt.Errorf("%w: truncated sslv2 client hello", qerrors.ErrBadMessage)
	}
	if cipherSpecsLen%3 != 0 {
		return nil, fmt.Errorf("%w: sslv2 cipher specs not a multiple of 3", qerrors.ErrBadMessage)
	}
	if challengeLen == 0 || challengeLen > constants.RandomSize {
		return nil, fmt.Errorf("%w: sslv2 challenge length %d", qerrors.ErrBadMessage, challengeLen)
	}

	var specs, challenge []byte
	if !s.ReadBytes(&specs, int(cipherSpecsLen)) ||
		!s.Skip(int(sessionIDLen)) ||
		!s.ReadBytes(&challenge, int(challengeLen)) {
		return nil, fmt.Errorf("%w: truncated sslv2 client hello body", qerrors.ErrBadMessage)
	}

	for i := 0; i+3 <= len(specs); i += 3 {
		if specs[i] != 0 {
			// SSLv2-only cipher kind; not negotiable here.
			continue
		}
		m.CipherSuites = append(m.CipherSuites, CipherSuite(uint16(specs[i+1])<<8|uint16(specs[i+2])))
	}

	copy(m.Random[constants.RandomSize-int(challengeLen):], challenge)
	return m, nil
}
