// Rolling handshake transcript hashes.
//
// Every byte of every handshake message, including the four header bytes,
// is fed to all six hashes in wire order: MD5, SHA-1 and SHA-256, each kept
// once for the client Finished computation and once for the server's. The
// two sets see identical input; keeping them separate lets each Finished
// snapshot its digest at the right transcript position without disturbing
// the other.
package handshake

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/gilwalzer/s2n/pkg/protocol"
)

type transcriptHashes struct {
	clientMD5    hash.Hash
	clientSHA1   hash.Hash
	clientSHA256 hash.Hash
	serverMD5    hash.Hash
	serverSHA1   hash.Hash
	serverSHA256 hash.Hash
}

func newTranscriptHashes() *transcriptHashes {
	return &transcriptHashes{
		clientMD5:    md5.New(),
		clientSHA1:   sha1.New(),
		clientSHA256: sha256.New(),
		serverMD5:    md5.New(),
		serverSHA1:   sha1.New(),
		serverSHA256: sha256.New(),
	}
}

// Write feeds p to all six hashes.
func (t *transcriptHashes) Write(p []byte) {
	t.clientMD5.Write(p)
	t.clientSHA1.Write(p)
	t.clientSHA256.Write(p)
	t.serverMD5.Write(p)
	t.serverSHA1.Write(p)
	t.serverSHA256.Write(p)
}

// clientDigest returns the transcript digest for the client Finished:
// SHA-256 on TLS 1.2, MD5 || SHA-1 before it. Sum does not disturb the
// rolling state.
func (t *transcriptHashes) clientDigest(v protocol.Version) []byte {
	if v >= protocol.VersionTLS12 {
		return t.clientSHA256.Sum(nil)
	}
	return t.clientSHA1.Sum(t.clientMD5.Sum(nil))
}

// serverDigest returns the transcript digest for the server Finished.
func (t *transcriptHashes) serverDigest(v protocol.Version) []byte {
	if v >= protocol.VersionTLS12 {
		return t.serverSHA256.Sum(nil)
	}
	return t.serverSHA1.Sum(t.serverMD5.Sum(nil))
}
