// Record content types, handshake message types and alerts.
//
// Numbering follows RFC 5246 §6.2.1 (content types), §7.4 (handshake types)
// and §7.2 (alerts).
package protocol

import "fmt"

// ContentType identifies the payload kind of one TLS record.
type ContentType uint8

// Record content types.
const (
	// ContentChangeCipherSpec carries the single-byte cipher activation signal.
	ContentChangeCipherSpec ContentType = 20
	// ContentAlert carries alert fragments.
	ContentAlert ContentType = 21
	// ContentHandshake carries handshake message fragments.
	ContentHandshake ContentType = 22
	// ContentApplicationData carries encrypted application payload.
	ContentApplicationData ContentType = 23
)

// String returns the RFC name of the content type.
func (ct ContentType) String() string {
	switch ct {
	case ContentChangeCipherSpec:
		return "change_cipher_spec"
	case ContentAlert:
		return "alert"
	case ContentHandshake:
		return "handshake"
	case ContentApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("content(%d)", uint8(ct))
	}
}

// HandshakeType identifies one handshake message kind.
type HandshakeType uint8

// Handshake message types.
const (
	TypeHelloRequest       HandshakeType = 0
	TypeClientHello        HandshakeType = 1
	TypeServerHello        HandshakeType = 2
	TypeCertificate        HandshakeType = 11
	TypeServerKeyExchange  HandshakeType = 12
	TypeCertificateRequest HandshakeType = 13
	TypeServerHelloDone    HandshakeType = 14
	TypeCertificateVerify  HandshakeType = 15
	TypeClientKeyExchange  HandshakeType = 16
	TypeFinished           HandshakeType = 20
	TypeCertificateStatus  HandshakeType = 22
)

// String returns the RFC name of the handshake message type.
func (ht HandshakeType) String() string {
	switch ht {
	case TypeHelloRequest:
		return "hello_request"
	case TypeClientHello:
		return "client_hello"
	case TypeServerHello:
		return "server_hello"
	case TypeCertificate:
		return "certificate"
	case TypeServerKeyExchange:
		return "server_key_exchange"
	case TypeCertificateRequest:
		return "certificate_request"
	case TypeServerHelloDone:
		return "server_hello_done"
	case TypeCertificateVerify:
		return "certificate_verify"
	case TypeClientKeyExchange:
		return "client_key_exchange"
	case TypeFinished:
		return "finished"
	case TypeCertificateStatus:
		return "certificate_status"
	default:
		return fmt.Sprintf("handshake(%d)", uint8(ht))
	}
}

// AlertLevel is the severity of an alert.
type AlertLevel uint8

// Alert severity levels.
const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription identifies the specific alert condition.
type AlertDescription uint8

// Alert descriptions the driver produces or inspects.
const (
	AlertCloseNotify             AlertDescription = 0
	AlertUnexpectedMessage       AlertDescription = 10
	AlertBadRecordMAC            AlertDescription = 20
	AlertHandshakeFailure        AlertDescription = 40
	AlertIllegalParameter        AlertDescription = 47
	AlertDecodeError             AlertDescription = 50
	AlertDecryptError            AlertDescription = 51
	AlertProtocolVersion         AlertDescription = 70
	AlertInternalError           AlertDescription = 80
	AlertNoRenegotiation         AlertDescription = 100
	AlertUnsupportedExtension    AlertDescription = 110
	AlertCertificateUnobtainable AlertDescription = 111
)

// Alert is one complete two-byte alert.
type Alert struct {
	Level       AlertLevel
	Description AlertDescription
}

// IsFatal reports whether the alert terminates the connection. close_notify
// is a graceful shutdown but still ends the connection.
func (a Alert) IsFatal() bool {
	return a.Level == AlertLevelFatal || a.Description == AlertCloseNotify
}

// String returns "level:description" for logging.
func (a Alert) String() string {
	level := "warning"
	if a.Level == AlertLevelFatal {
		level = "fatal"
	}
	return fmt.Sprintf("%s:%d", level, uint8(a.Description))
}

// ParseAlert decodes one complete alert from a two-byte fragment.
func ParseAlert(b []byte) Alert {
	return Alert{Level: AlertLevel(b[0]), Description: AlertDescription(b[1])}
}
