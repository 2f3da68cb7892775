package protocol

import (
	"bytes"
	"testing"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// sslv2Body builds an SSLv2 ClientHello body: spec lengths, specs,
// session id, challenge.
func sslv2Body(specs []byte, sessionID, challenge []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{byte(len(specs) >> 8), byte(len(specs))})
	b.Write([]byte{byte(len(sessionID) >> 8), byte(len(sessionID))})
	b.Write([]byte{byte(len(challenge) >> 8), byte(len(challenge))})
	b.Write(specs)
	b.Write(sessionID)
	b.Write(challenge)
	return b.Bytes()
}

func TestSSLv2ClientHello(t *testing.T) {
	challenge := bytes.Repeat([]byte{0xAB}, 16)
	specs := []byte{
		0x00, 0x00, 0x9C, // TLS suite
		0x07, 0x00, 0xC0, // SSLv2-only kind, skipped
		0x00, 0xC0, 0x2F, // TLS suite
	}
	m, err := UnmarshalSSLv2ClientHello(3, 3, sslv2Body(specs, []byte("sess"), challenge))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if m.Version != VersionTLS12 {
		t.Errorf("version: got %s", m.Version)
	}
	want := []CipherSuite{TLS_RSA_WITH_AES_128_GCM_SHA256, TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256}
	if len(m.CipherSuites) != 2 || m.CipherSuites[0] != want[0] || m.CipherSuites[1] != want[1] {
		t.Errorf("cipher suites: %v", m.CipherSuites)
	}
	// Challenge is right-aligned into the 32-byte random.
	if !bytes.Equal(m.Random[16:], challenge) {
		t.Errorf("challenge not right-aligned: %x", m.Random)
	}
	for _, c := range m.Random[:16] {
		if c != 0 {
			t.Errorf("random prefix not zero: %x", m.Random)
			break
		}
	}
}

func TestSSLv2ClientHelloBadSpecsLength(t *testing.T) {
	body := sslv2Body([]byte{0x00, 0x00}, nil, bytes.Repeat([]byte{1}, 16))
	if _, err := UnmarshalSSLv2ClientHello(3, 1, body); !qerrors.Is(err, qerrors.ErrBadMessage) {
		t.Errorf("expected ErrBadMessage, got %v", err)
	}
}

func TestSSLv2ClientHelloChallengeTooLong(t *testing.T) {
	body := sslv2Body([]byte{0x00, 0x00, 0x9C}, nil, bytes.Repeat([]byte{1}, 33))
	if _, err := UnmarshalSSLv2ClientHello(3, 1, body); !qerrors.Is(err, qerrors.ErrBadMessage) {
		t.Errorf("expected ErrBadMessage, got %v", err)
	}
}

func TestSSLv2ClientHelloTruncated(t *testing.T) {
	body := sslv2Body([]byte{0x00, 0x00, 0x9C}, nil, bytes.Repeat([]byte{1}, 16))
	if _, err := UnmarshalSSLv2ClientHello(3, 1, body[:7]); !qerrors.Is(err, qerrors.ErrBadMessage) {
		t.Errorf("expected ErrBadMessage, got %v", err)
	}
}
