package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/gilwalzer/s2n/internal/constants"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// refPHash is an independent P_hash used to cross-check the implementation.
func refPHash(newHash func() hash.Hash, secret, seed []byte, outLen int) []byte {
	var out []byte
	a := seed
	for len(out) < outLen {
		mac := hmac.New(newHash, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(newHash, secret)
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:outLen]
}

func TestPRFTLS12MatchesPHash(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	seed := []byte("some seed material")
	label := "test label"

	got := PRF(protocol.VersionTLS12, secret, label, seed, 100)
	want := refPHash(sha256.New, secret, append([]byte(label), seed...), 100)
	if !bytes.Equal(got, want) {
		t.Errorf("TLS 1.2 PRF diverges from P_SHA256")
	}
}

func TestPRFPre12MatchesXorConstruction(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcde") // odd length
	seed := []byte("seed")
	label := "master secret"
	labelAndSeed := append([]byte(label), seed...)

	half := (len(secret) + 1) / 2
	want := refPHash(md5.New, secret[:half], labelAndSeed, 64)
	sha1Stream := refPHash(sha1.New, secret[len(secret)-half:], labelAndSeed, 64)
	for i := range want {
		want[i] ^= sha1Stream[i]
	}

	for _, v := range []protocol.Version{protocol.VersionTLS10, protocol.VersionTLS11} {
		got := PRF(v, secret, label, seed, 64)
		if !bytes.Equal(got, want) {
			t.Errorf("%s PRF diverges from MD5/SHA1 XOR construction", v)
		}
	}
}

func TestPRFDeterministicAndLabelSeparated(t *testing.T) {
	secret := []byte("secret")
	seed := []byte("seed")

	a := PRF(protocol.VersionTLS12, secret, LabelClientFinished, seed, 12)
	b := PRF(protocol.VersionTLS12, secret, LabelClientFinished, seed, 12)
	if !bytes.Equal(a, b) {
		t.Error("PRF must be deterministic")
	}

	c := PRF(protocol.VersionTLS12, secret, LabelServerFinished, seed, 12)
	if bytes.Equal(a, c) {
		t.Error("different labels must produce different output")
	}
}

func TestMasterSecretLength(t *testing.T) {
	premaster := bytes.Repeat([]byte{7}, constants.PremasterSecretSize)
	cr := bytes.Repeat([]byte{1}, constants.RandomSize)
	sr := bytes.Repeat([]byte{2}, constants.RandomSize)

	for _, v := range []protocol.Version{protocol.VersionTLS10, protocol.VersionTLS12} {
		master := MasterSecret(v, premaster, cr, sr)
		if len(master) != constants.MasterSecretSize {
			t.Errorf("%s: master secret is %d bytes", v, len(master))
		}
	}

	// Both sides deriving from the same inputs must agree; swapped randoms
	// must not.
	a := MasterSecret(protocol.VersionTLS12, premaster, cr, sr)
	b := MasterSecret(protocol.VersionTLS12, premaster, cr, sr)
	if !bytes.Equal(a, b) {
		t.Error("master secret must be deterministic")
	}
	if bytes.Equal(a, MasterSecret(protocol.VersionTLS12, premaster, sr, cr)) {
		t.Error("swapped randoms must change the master secret")
	}
}

func TestFinishedVerifyDataLength(t *testing.T) {
	master := bytes.Repeat([]byte{3}, constants.MasterSecretSize)
	digest := bytes.Repeat([]byte{4}, 32)

	verify := FinishedVerifyData(protocol.VersionTLS12, master, LabelClientFinished, digest)
	if len(verify) != constants.FinishedVerifySize {
		t.Errorf("verify_data is %d bytes", len(verify))
	}
}
