// signature.go implements the RSA signatures over ephemeral key exchange
// parameters.
//
// The signed structure is client_random || server_random || params
// (RFC 5246 §7.4.3). Before TLS 1.2 the digest is the raw MD5 || SHA-1
// concatenation; on TLS 1.2 the negotiated hash is used and the wire
// signature carries a (hash, signature) algorithm prefix.
package crypto

import (
	stdcrypto "crypto"
	"crypto/md5"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"

	qerrors "github.com/gilwalzer/s2n/internal/errors"
)

// SignatureDigest selects the digest used for key exchange signatures.
type SignatureDigest int

// Signature digest algorithms.
const (
	// DigestMD5SHA1 is the pre-TLS-1.2 concatenated digest.
	DigestMD5SHA1 SignatureDigest = iota
	// DigestSHA1 is SHA-1, the TLS 1.2 default before signature_algorithms
	// negotiation selects otherwise.
	DigestSHA1
	// DigestSHA256 is SHA-256 under TLS 1.2 signature_algorithms.
	DigestSHA256
)

// String returns the digest name.
func (d SignatureDigest) String() string {
	switch d {
	case DigestMD5SHA1:
		return "MD5+SHA1"
	case DigestSHA1:
		return "SHA1"
	case DigestSHA256:
		return "SHA256"
	default:
		return fmt.Sprintf("SignatureDigest(%d)", int(d))
	}
}

// HashAlgorithmID returns the TLS 1.2 HashAlgorithm registry value
// (RFC 5246 §7.4.1.4.1). Zero for the pre-1.2 combined digest.
func (d SignatureDigest) HashAlgorithmID() uint8 {
	switch d {
	case DigestSHA1:
		return 2
	case DigestSHA256:
		return 4
	default:
		return 0
	}
}

// digestParams hashes the signed structure.
func (d SignatureDigest) digestParams(clientRandom, serverRandom, params []byte) ([]byte, stdcrypto.Hash) {
	switch d {
	case DigestSHA1:
		h := sha1.New()
		h.Write(clientRandom)
		h.Write(serverRandom)
		h.Write(params)
		return h.Sum(nil), stdcrypto.SHA1
	case DigestSHA256:
		h := sha256.New()
		h.Write(clientRandom)
		h.Write(serverRandom)
		h.Write(params)
		return h.Sum(nil), stdcrypto.SHA256
	default:
		m := md5.New()
		m.Write(clientRandom)
		m.Write(serverRandom)
		m.Write(params)
		s := sha1.New()
		s.Write(clientRandom)
		s.Write(serverRandom)
		s.Write(params)
		return append(m.Sum(nil), s.Sum(nil)...), stdcrypto.MD5SHA1
	}
}

// SignParams signs the key exchange parameters with the server's RSA key.
func SignParams(d SignatureDigest, key *rsa.PrivateKey, r io.Reader, clientRandom, serverRandom, params []byte) ([]byte, error) {
	if r == nil {
		r = Reader
	}
	digest, hashID := d.digestParams(clientRandom, serverRandom, params)
	return rsa.SignPKCS1v15(r, key, hashID, digest)
}

// VerifyParams verifies a key exchange parameter signature.
func VerifyParams(d SignatureDigest, pub *rsa.PublicKey, clientRandom, serverRandom, params, sig []byte) error {
	digest, hashID := d.digestParams(clientRandom, serverRandom, params)
	if err := rsa.VerifyPKCS1v15(pub, hashID, digest, sig); err != nil {
		return fmt.Errorf("%w: %v", qerrors.ErrBadSignature, err)
	}
	return nil
}
