// Hello extensions codec.
//
// Extensions are a u16-length-prefixed list of (type: u16, data: u16-prefixed)
// entries (RFC 6066). Both hello messages omit the entire block when there is
// nothing to send; a decoder must tolerate its absence.
package protocol

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// Extension type values the driver understands. Unknown types are carried
// through opaquely and otherwise ignored.
const (
	// ExtStatusRequest asks the server to staple an OCSP response (RFC 6066 §8).
	ExtStatusRequest uint16 = 5
	// ExtSignatureAlgorithms advertises the client's signature/hash pairs
	// (RFC 5246 §7.4.1.4.1). TLS 1.2 only.
	ExtSignatureAlgorithms uint16 = 13
	// ExtRenegotiationInfo is the secure renegotiation marker (RFC 5746).
	ExtRenegotiationInfo uint16 = 0xFF01
)

// OCSP status_request constants.
const (
	// OCSPStatusType is the certificate status type for OCSP (RFC 6066 §8).
	OCSPStatusType uint8 = 1
)

// Extension is one raw hello extension.
type Extension struct {
	Type uint16
	Data []byte
}

// AddExtensions appends the extensions block to b. Nothing is written when
// exts is empty, matching the wire rule that the block is optional.
func AddExtensions(b *cryptobyte.Builder, exts []Extension) {
	if len(exts) == 0 {
		return
	}
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, ext := range exts {
			b.AddUint16(ext.Type)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(ext.Data)
			})
		}
	})
}

// ParseExtensions decodes an exact-sized extensions block: the u16 list
// length followed by that many bytes of entries.
func ParseExtensions(data []byte) ([]Extension, error) {
	s := cryptobyte.String(data)
	var list cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&list) || !s.Empty() {
		return nil, qerrors.ErrBadExtensions
	}
	var exts []Extension
	for !list.Empty() {
		var extType uint16
		var body cryptobyte.String
		if !list.ReadUint16(&extType) || !list.ReadUint16LengthPrefixed(&body) {
			return nil, qerrors.ErrBadExtensions
		}
		data := make([]byte, len(body))
		copy(data, body)
		exts = append(exts, Extension{Type: extType, Data: data})
	}
	return exts, nil
}

// FindExtension returns the first extension of the given type, if present.
func FindExtension(exts []Extension, extType uint16) (Extension, bool) {
	for _, ext := range exts {
		if ext.Type == extType {
			return ext, true
		}
	}
	return Extension{}, false
}

// SignatureAlgorithmsExtension builds the TLS 1.2 signature_algorithms
// extension advertising the RSA pairs this implementation signs with.
func SignatureAlgorithmsExtension() Extension {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		// (hash, signature) pairs: sha256/rsa, sha1/rsa.
		b.AddUint16(0x0401)
		b.AddUint16(0x0201)
	})
	data, err := b.Bytes()
	if err != nil {
		// Static content; cannot fail.
		panic(fmt.Sprintf("protocol: building signature_algorithms: %v", err))
	}
	return Extension{Type: ExtSignatureAlgorithms, Data: data}
}

// StatusRequestExtension builds the client's status_request extension:
// OCSP status type with empty responder ID list and empty request extensions.
func StatusRequestExtension() Extension {
	return Extension{Type: ExtStatusRequest, Data: []byte{OCSPStatusType, 0, 0, 0, 0}}
}

// EmptyStatusRequestExtension is the server's echo of status_request,
// which carries no data (RFC 6066 §8).
func EmptyStatusRequestExtension() Extension {
	return Extension{Type: ExtStatusRequest}
}
