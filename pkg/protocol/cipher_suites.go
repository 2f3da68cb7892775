package protocol

import "fmt"

// KeyExchange identifies how the premaster secret is established.
type KeyExchange int

// Key exchange methods.
const (
	// KeyExchangeRSA encrypts the premaster secret to the server's RSA key.
	KeyExchangeRSA KeyExchange = iota
	// KeyExchangeECDHE performs an ephemeral X25519 Diffie-Hellman exchange
	// signed by the server's RSA key.
	KeyExchangeECDHE
)

// CipherSuite is a TLS cipher suite identified by its two-byte wire value.
type CipherSuite uint16

// Supported cipher suites.
const (
	TLS_RSA_WITH_AES_128_CBC_SHA          CipherSuite = 0x002F
	TLS_RSA_WITH_AES_256_CBC_SHA          CipherSuite = 0x0035
	TLS_RSA_WITH_AES_128_GCM_SHA256       CipherSuite = 0x009C
	TLS_RSA_WITH_AES_256_GCM_SHA384       CipherSuite = 0x009D
	TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA    CipherSuite = 0xC013
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256 CipherSuite = 0xC02F
)

// String returns the IANA name of the cipher suite.
func (cs CipherSuite) String() string {
	switch cs {
	case TLS_RSA_WITH_AES_128_CBC_SHA:
		return "TLS_RSA_WITH_AES_128_CBC_SHA"
	case TLS_RSA_WITH_AES_256_CBC_SHA:
		return "TLS_RSA_WITH_AES_256_CBC_SHA"
	case TLS_RSA_WITH_AES_128_GCM_SHA256:
		return "TLS_RSA_WITH_AES_128_GCM_SHA256"
	case TLS_RSA_WITH_AES_256_GCM_SHA384:
		return "TLS_RSA_WITH_AES_256_GCM_SHA384"
	case TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:
		return "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA"
	case TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	default:
		return fmt.Sprintf("CipherSuite(0x%04X)", uint16(cs))
	}
}

// IsSupported reports whether this implementation can negotiate cs.
func (cs CipherSuite) IsSupported() bool {
	switch cs {
	case TLS_RSA_WITH_AES_128_CBC_SHA,
		TLS_RSA_WITH_AES_256_CBC_SHA,
		TLS_RSA_WITH_AES_128_GCM_SHA256,
		TLS_RSA_WITH_AES_256_GCM_SHA384,
		TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
		TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return true
	}
	return false
}

// KeyExchange returns the key exchange method of the suite.
func (cs CipherSuite) KeyExchange() KeyExchange {
	switch cs {
	case TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA, TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return KeyExchangeECDHE
	default:
		return KeyExchangeRSA
	}
}

// MinVersion returns the lowest protocol version the suite may be used with.
// GCM suites require the TLS 1.2 record protections.
func (cs CipherSuite) MinVersion() Version {
	switch cs {
	case TLS_RSA_WITH_AES_128_GCM_SHA256,
		TLS_RSA_WITH_AES_256_GCM_SHA384,
		TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:
		return VersionTLS12
	default:
		return VersionSSLv3
	}
}

// DefaultCipherPreferences is the server-side preference order.
func DefaultCipherPreferences() []CipherSuite {
	return []CipherSuite{
		TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		TLS_RSA_WITH_AES_128_GCM_SHA256,
		TLS_RSA_WITH_AES_256_GCM_SHA384,
		TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
		TLS_RSA_WITH_AES_128_CBC_SHA,
		TLS_RSA_WITH_AES_256_CBC_SHA,
	}
}

// SelectCipherSuite picks the first server-preferred suite that the client
// offered and that is usable at the negotiated version. It returns 0 when
// there is no overlap.
func SelectCipherSuite(preferences, offered []CipherSuite, version Version) CipherSuite {
	for _, p := range preferences {
		if !p.IsSupported() || version < p.MinVersion() {
			continue
		}
		for _, o := range offered {
			if o == p {
				return p
			}
		}
	}
	return 0
}
