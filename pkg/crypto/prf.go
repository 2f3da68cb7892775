// TLS pseudo-random function.
//
// This file (prf.go) implements the key expansion used for the master
// secret and the Finished verify data:
//
//   - TLS 1.2 (RFC 5246 §5): PRF(secret, label, seed) = P_SHA256(secret, label || seed)
//   - TLS 1.0/1.1 (RFC 2246 §5): the secret is split in half and
//     P_MD5(S1) XOR P_SHA1(S2) is taken over label || seed
//
// P_hash is the standard HMAC iteration:
//
//	A(0) = seed
//	A(i) = HMAC_hash(secret, A(i-1))
//	P_hash = HMAC_hash(secret, A(1) || seed) || HMAC_hash(secret, A(2) || seed) || ...
package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/gilwalzer/s2n/internal/constants"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// PRF labels defined by the TLS RFCs.
const (
	LabelMasterSecret   = "master secret"
	LabelClientFinished = "client finished"
	LabelServerFinished = "server finished"
	LabelKeyExpansion   = "key expansion"
)

// PRF computes outLen bytes of TLS pseudo-random output for the given
// protocol version.
func PRF(version protocol.Version, secret []byte, label string, seed []byte, outLen int) []byte {
	labelAndSeed := make([]byte, 0, len(label)+len(seed))
	labelAndSeed = append(labelAndSeed, label...)
	labelAndSeed = append(labelAndSeed, seed...)

	if version >= protocol.VersionTLS12 {
		return pHash(sha256.New, secret, labelAndSeed, outLen)
	}

	// Pre-1.2: split the secret and XOR the two streams. Odd-length secrets
	// share the middle byte between both halves.
	half := (len(secret) + 1) / 2
	s1 := secret[:half]
	s2 := secret[len(secret)-half:]

	out := pHash(md5.New, s1, labelAndSeed, outLen)
	sha1Stream := pHash(sha1.New, s2, labelAndSeed, outLen)
	for i := range out {
		out[i] ^= sha1Stream[i]
	}
	return out
}

// MasterSecret derives the 48-byte master secret from the premaster secret
// and both hello randoms.
func MasterSecret(version protocol.Version, premaster []byte, clientRandom, serverRandom []byte) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, clientRandom...)
	seed = append(seed, serverRandom...)
	return PRF(version, premaster, LabelMasterSecret, seed, constants.MasterSecretSize)
}

// FinishedVerifyData computes the 12-byte Finished verify_data from the
// master secret and the transcript digest for the given label.
func FinishedVerifyData(version protocol.Version, masterSecret []byte, label string, transcriptDigest []byte) []byte {
	return PRF(version, masterSecret, label, transcriptDigest, constants.FinishedVerifySize)
}

// pHash implements P_hash from RFC 5246 §5.
func pHash(newHash func() hash.Hash, secret, seed []byte, outLen int) []byte {
	out := make([]byte, 0, outLen)

	mac := hmac.New(newHash, secret)
	mac.Write(seed)
	a := mac.Sum(nil) // A(1)

	for len(out) < outLen {
		mac.Reset()
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)

		mac.Reset()
		mac.Write(a)
		a = mac.Sum(nil)
	}
	return out[:outLen]
}
