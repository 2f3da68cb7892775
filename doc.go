// Package s2n provides a TLS 1.0/1.1/1.2 handshake driver for client and
// server endpoints.
//
// The driver orchestrates the handshake state machine: it dispatches on the
// protocol state, encodes and decodes the handshake messages, reassembles
// messages fragmented across records, maintains the rolling transcript
// hashes, and pumps I/O cooperatively with explicit blocked-status
// signaling instead of blocking.
//
// # Quick Start
//
//	import (
//		"context"
//
//		"github.com/gilwalzer/s2n/pkg/handshake"
//		"github.com/gilwalzer/s2n/pkg/record"
//	)
//
//	clientTr, serverTr := record.MemoryPipe()
//	client := handshake.NewConn(handshake.RoleClient, clientTr, nil)
//	server := handshake.NewConn(handshake.RoleServer, serverTr, serverConfig)
//
//	// Pump both endpoints until neither is blocked.
//	for {
//		cb, err := client.Negotiate(context.Background())
//		...
//		sb, err := server.Negotiate(context.Background())
//		...
//	}
//
// Negotiate returns a Blocked status when the transport stalls; the caller
// re-invokes it once the transport is ready, and resuming is semantically
// identical to never having returned.
//
// # Package Structure
//
//   - pkg/handshake: the state machine, fragmentation-aware reader/writer,
//     transcript hashes and the Negotiate drive loop
//   - pkg/record: plaintext record-layer framing with would-block signaling
//   - pkg/protocol: wire types and message codecs
//   - pkg/crypto: randomness, TLS PRF, X25519 exchange, RSA signatures
//   - pkg/buffer: the dual-cursor message buffer
//   - pkg/metrics: structured logging, counters and tracing
//   - internal/constants: wire sizes and protocol limits
//   - internal/errors: the driver's error taxonomy
//
// # Scope
//
// TLS 1.3, DTLS, session resumption, renegotiation, compression and
// heartbeat are out of scope. Record cryptography is delegated to the
// embedding stack; this module drives the handshake above a plaintext
// record framing layer.
package s2n
