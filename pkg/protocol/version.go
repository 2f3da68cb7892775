// Package protocol defines the TLS wire-level types and message codecs used
// by the handshake driver: protocol versions, record content types, handshake
// message types, cipher suites, and the encoders/decoders for the handshake
// messages the driver exchanges.
//
// Encoding and decoding are built on golang.org/x/crypto/cryptobyte, which
// enforces length-prefix discipline and makes truncation errors explicit.
package protocol

import (
	"fmt"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// Version is a protocol version in the driver's internal encoding:
// major*10 + minor. The wire carries the (major, minor) pair.
type Version uint8

// Supported protocol versions.
const (
	VersionSSLv2 Version = 20
	VersionSSLv3 Version = 30
	VersionTLS10 Version = 31
	VersionTLS11 Version = 32
	VersionTLS12 Version = 33
)

// VersionFromWire converts a wire (major, minor) pair to the internal encoding.
func VersionFromWire(major, minor uint8) Version {
	return Version(major*10 + minor)
}

// Major returns the wire major version byte.
func (v Version) Major() uint8 {
	return uint8(v) / 10
}

// Minor returns the wire minor version byte.
func (v Version) Minor() uint8 {
	return uint8(v) % 10
}

// Valid reports whether v is inside the negotiable range [SSLv3, TLS 1.2].
func (v Version) Valid() bool {
	return v >= VersionSSLv3 && v <= VersionTLS12
}

// String returns the conventional protocol name.
func (v Version) String() string {
	switch v {
	case VersionSSLv2:
		return "SSLv2"
	case VersionSSLv3:
		return "SSLv3"
	case VersionTLS10:
		return "TLS1.0"
	case VersionTLS11:
		return "TLS1.1"
	case VersionTLS12:
		return "TLS1.2"
	default:
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
}

// CheckRange returns ErrBadVersion when v lies outside [SSLv3, TLS 1.2].
func (v Version) CheckRange() error {
	if !v.Valid() {
		return fmt.Errorf("%w: %s", qerrors.ErrBadVersion, v)
	}
	return nil
}
