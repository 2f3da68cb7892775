// Package record implements the plaintext TLS record layer under the
// handshake driver: header framing on write, incremental record assembly on
// read, and explicit would-block signaling in both directions.
//
// Record format (RFC 5246 §6.2.1):
//
//	+------+---------+--------+----------+
//	| Type | Version | Length | Payload  |
//	| 1B   | 2B      | 2B BE  | ≤ 2^14   |
//	+------+---------+--------+----------+
//
// The layer additionally recognizes the SSLv2 compatibility header on the
// first inbound record: two length bytes with the high bit set, followed by
// the message type and offered version. Record cryptography is not performed
// here; encryption and MAC protection belong to a layer this package does
// not implement.
//
// All reads and writes are non-blocking: when the transport returns
// ErrWouldBlock, the layer preserves its partial state and the same call can
// be repeated later with identical semantics.
package record

import (
	"errors"
	"fmt"
	"io"

	"github.com/gilwalzer/s2n/internal/constants"
	qerrors "github.com/gilwalzer/s2n/internal/errors"
	"github.com/gilwalzer/s2n/pkg/buffer"
	"github.com/gilwalzer/s2n/pkg/protocol"
)

// Layer frames records over a non-blocking transport. It owns the three
// record buffers the handshake driver observes: the inbound payload, the
// inbound header, and the egress queue.
type Layer struct {
	tr io.ReadWriter

	headerIn *buffer.Buffer // inbound record header (5 bytes)
	in       *buffer.Buffer // inbound record payload
	out      *buffer.Buffer // egress frames awaiting flush

	version protocol.Version // version stamped on outbound records

	// Inbound assembly state, preserved across would-block suspensions.
	headerParsed bool
	contentType  protocol.ContentType
	sslv2        bool
	payloadLen   int
	firstRecord  bool

	scratch [4096]byte
}

// NewLayer creates a record layer over the given transport. Outbound records
// are stamped TLS 1.0 until SetVersion installs the negotiated version.
func NewLayer(tr io.ReadWriter) *Layer {
	return &Layer{
		tr:          tr,
		headerIn:    buffer.NewWithCapacity(constants.RecordHeaderSize),
		in:          buffer.NewWithCapacity(constants.MaxFragmentSize),
		out:         buffer.New(),
		version:     protocol.VersionTLS10,
		firstRecord: true,
	}
}

// SetVersion installs the protocol version stamped on outbound records.
func (l *Layer) SetVersion(v protocol.Version) {
	l.version = v
}

// In returns the inbound payload buffer of the current record.
func (l *Layer) In() *buffer.Buffer {
	return l.in
}

// HeaderIn returns the inbound header buffer of the current record.
func (l *Layer) HeaderIn() *buffer.Buffer {
	return l.headerIn
}

// Out returns the egress buffer.
func (l *Layer) Out() *buffer.Buffer {
	return l.out
}

// PendingOut reports whether framed bytes are waiting to be flushed.
func (l *Layer) PendingOut() bool {
	return l.out.Len() > 0
}

// MaxWritePayloadSize returns the largest payload one record may carry.
func (l *Layer) MaxWritePayloadSize() int {
	return constants.MaxFragmentSize
}

// ReadFullRecord assembles one complete inbound record. It returns the
// record's content type and whether it used SSLv2 framing. The payload is
// left in In; the header in HeaderIn.
//
// ErrWouldBlock means insufficient transport bytes; all partial state is
// kept and the call resumes where it stopped. ErrClosed means the peer
// closed the transport.
func (l *Layer) ReadFullRecord() (protocol.ContentType, bool, error) {
	if !l.headerParsed {
		if l.headerIn.Size() >= constants.RecordHeaderSize {
			// Previous record is done; start fresh.
			l.headerIn.Wipe()
			l.in.Wipe()
		}
		if err := l.fill(l.headerIn, constants.RecordHeaderSize); err != nil {
			return 0, false, err
		}
		if err := l.parseHeader(); err != nil {
			return 0, false, err
		}
		l.headerParsed = true
	}

	if err := l.fill(l.in, l.payloadLen); err != nil {
		return 0, false, err
	}

	l.headerParsed = false
	l.firstRecord = false
	return l.contentType, l.sslv2, nil
}

// parseHeader decodes the five header bytes, handling SSLv2 framing on the
// first inbound record.
func (l *Layer) parseHeader() error {
	hdr := l.headerIn.All()

	if l.firstRecord && hdr[0]&0x80 != 0 {
		// SSLv2 header: 15-bit length covers the message type and version
		// bytes already consumed into the header buffer.
		length := int(hdr[0]&0x7F)<<8 | int(hdr[1])
		if length < 3 || length-3 > constants.MaxFragmentSize {
			return qerrors.NewRecordError("read", fmt.Errorf("%w: sslv2 record length %d", qerrors.ErrBadMessage, length))
		}
		l.sslv2 = true
		l.contentType = protocol.ContentHandshake
		l.payloadLen = length - 3
		return nil
	}

	l.sslv2 = false
	l.contentType = protocol.ContentType(hdr[0])
	l.payloadLen = int(hdr[3])<<8 | int(hdr[4])
	if l.payloadLen > constants.MaxFragmentSize {
		return qerrors.NewRecordError("read", fmt.Errorf("%w: record length %d", qerrors.ErrBadMessage, l.payloadLen))
	}
	return nil
}

// fill reads from the transport until buf holds target bytes.
func (l *Layer) fill(buf *buffer.Buffer, target int) error {
	for buf.Size() < target {
		want := target - buf.Size()
		if want > len(l.scratch) {
			want = len(l.scratch)
		}
		n, err := l.tr.Read(l.scratch[:want])
		if n > 0 {
			buf.Write(l.scratch[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return qerrors.NewRecordError("read", qerrors.ErrClosed)
			}
			if errors.Is(err, qerrors.ErrWouldBlock) {
				return qerrors.ErrWouldBlock
			}
			return qerrors.NewRecordError("read", err)
		}
		if n == 0 {
			return qerrors.ErrWouldBlock
		}
	}
	return nil
}

// WipeIn wipes the inbound payload buffer.
func (l *Layer) WipeIn() {
	l.in.Wipe()
}

// Write frames payload as one record of the given content type and queues
// it for flushing. The payload must fit in a single record.
func (l *Layer) Write(ct protocol.ContentType, payload []byte) error {
	if len(payload) > constants.MaxFragmentSize {
		return qerrors.NewRecordError("write", fmt.Errorf("%w: payload length %d", qerrors.ErrInternal, len(payload)))
	}
	hdr := [constants.RecordHeaderSize]byte{
		byte(ct),
		l.version.Major(),
		l.version.Minor(),
		byte(len(payload) >> 8),
		byte(len(payload)),
	}
	l.out.Write(hdr[:])
	l.out.Write(payload)
	return nil
}

// Flush drives queued egress bytes into the transport. ErrWouldBlock means
// the transport stalled mid-write; the remaining bytes stay queued and a
// later Flush resumes. The egress buffer is wiped once fully drained.
func (l *Layer) Flush() error {
	for l.out.Len() > 0 {
		n, err := l.tr.Write(l.out.Bytes())
		if n > 0 {
			l.out.Next(n)
		}
		if err != nil {
			if errors.Is(err, qerrors.ErrWouldBlock) {
				return qerrors.ErrWouldBlock
			}
			return qerrors.NewRecordError("flush", err)
		}
		if n == 0 {
			return qerrors.ErrWouldBlock
		}
	}
	l.out.Wipe()
	return nil
}
