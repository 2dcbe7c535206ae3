package minitls

// TLS version constants (following Go's crypto/tls conventions)
const (
	VersionTLS10 = 0x0301
)

// Record layer content types
const (
	recordTypeChangeCipherSpec = 20
	recordTypeAlert            = 21
	recordTypeHandshake        = 22
	recordTypeApplicationData  = 23
)

const recordHeaderLen = 5

// maxRecordLength is the largest fragment a conforming peer may send:
// 2^14 plus expansion room for MAC and padding (RFC 2246 Section 6.2.3).
const maxRecordLength = 16384 + 2048

type recordType uint8
type HandshakeType uint8

// TLS 1.0 Handshake Message Types
const (
	typeClientHello       HandshakeType = 1
	typeServerHello       HandshakeType = 2
	typeCertificate       HandshakeType = 11
	typeServerHelloDone   HandshakeType = 14
	typeClientKeyExchange HandshakeType = 16
	typeFinished          HandshakeType = 20
)

const (
	masterSecretLength   = 48 // Length of the master secret (RFC 2246 Section 8.1)
	preMasterLength      = 48 // Length of the RSA pre-master secret
	finishedVerifyLength = 12 // Length of verify_data in a Finished message
	randomLength         = 32 // Length of ClientHello.random and ServerHello.random
)

// connectionEnd identifies which side of the connection this engine plays.
// This engine only ever produces serverEnd; the tag is recorded in
// securityParameters.entity, and key derivation does not consult it.
type connectionEnd int

const (
	serverEnd connectionEnd = iota
	clientEnd
)

// securityParameters carries the negotiated parameters of a handshake in
// flight, per RFC 2246 Appendix A.6.
type securityParameters struct {
	entity        connectionEnd
	cipherSuite   uint16
	clientVersion uint16 // offered ClientHello.client_version, needed for the pre-master check
	masterSecret  []byte // empty until ClientKeyExchange is processed
	clientRandom  []byte // 32 bytes
	serverRandom  []byte // 32 bytes
}

// Alert Levels
const (
	alertLevelWarning = 1
	alertLevelFatal   = 2
)

// Alert Descriptions (from RFC 2246, Section 7.2)
const (
	alertCloseNotify            = 0
	alertUnexpectedMessage      = 10
	alertBadRecordMAC           = 20
	alertDecryptionFailed       = 21
	alertRecordOverflow         = 22
	alertDecompressionFailure   = 30
	alertHandshakeFailure       = 40
	alertBadCertificate         = 42
	alertUnsupportedCertificate = 43
	alertCertificateRevoked     = 44
	alertCertificateExpired     = 45
	alertCertificateUnknown     = 46
	alertIllegalParameter       = 47
	alertUnknownCA              = 48
	alertAccessDenied           = 49
	alertDecodeError            = 50
	alertDecryptError           = 51
	alertProtocolVersion        = 70
	alertInsufficientSecurity   = 71
	alertInternalError          = 80
	alertUserCanceled           = 90
)

func alertDescriptionString(d uint8) string {
	switch d {
	case alertCloseNotify:
		return "close_notify"
	case alertUnexpectedMessage:
		return "unexpected_message"
	case alertBadRecordMAC:
		return "bad_record_mac"
	case alertDecryptionFailed:
		return "decryption_failed"
	case alertRecordOverflow:
		return "record_overflow"
	case alertDecompressionFailure:
		return "decompression_failure"
	case alertHandshakeFailure:
		return "handshake_failure"
	case alertBadCertificate:
		return "bad_certificate"
	case alertUnsupportedCertificate:
		return "unsupported_certificate"
	case alertCertificateRevoked:
		return "certificate_revoked"
	case alertCertificateExpired:
		return "certificate_expired"
	case alertCertificateUnknown:
		return "certificate_unknown"
	case alertIllegalParameter:
		return "illegal_parameter"
	case alertUnknownCA:
		return "unknown_ca"
	case alertAccessDenied:
		return "access_denied"
	case alertDecodeError:
		return "decode_error"
	case alertDecryptError:
		return "decrypt_error"
	case alertProtocolVersion:
		return "protocol_version"
	case alertInsufficientSecurity:
		return "insufficient_security"
	case alertInternalError:
		return "internal_error"
	case alertUserCanceled:
		return "user_canceled"
	default:
		return "unknown"
	}
}
