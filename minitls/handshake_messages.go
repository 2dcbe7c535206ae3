package minitls

import (
	"golang.org/x/crypto/cryptobyte"
)

// TLS 1.0 handshake message codec (RFC 2246 Section 7.4). Inbound messages
// are parsed with cryptobyte, outbound ones assembled with its builder, the
// same way Go's crypto/tls does. Every marshal includes the 4-byte handshake
// framing; the raw framed bytes are what the handshake transcript records.

type clientHelloMsg struct {
	raw                []byte
	vers               uint16
	random             []byte
	sessionID          []byte
	cipherSuites       []uint16
	compressionMethods []byte
	extensions         []byte // raw extension block, uninterpreted
}

func parseClientHello(data []byte) (*clientHelloMsg, error) {
	m := &clientHelloMsg{raw: data}
	s := cryptobyte.String(data)

	var msgType uint8
	var body cryptobyte.String
	if !s.ReadUint8(&msgType) || HandshakeType(msgType) != typeClientHello ||
		!s.ReadUint24LengthPrefixed(&body) || !s.Empty() {
		return nil, protocolError("malformed ClientHello framing")
	}
	if !body.ReadUint16(&m.vers) || !body.ReadBytes(&m.random, randomLength) {
		return nil, protocolError("ClientHello too short")
	}

	var sessionID cryptobyte.String
	if !body.ReadUint8LengthPrefixed(&sessionID) {
		return nil, protocolError("malformed ClientHello session id")
	}
	m.sessionID = sessionID

	var suites cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&suites) || len(suites)%2 != 0 || suites.Empty() {
		return nil, protocolError("malformed ClientHello cipher suite list")
	}
	for !suites.Empty() {
		var id uint16
		suites.ReadUint16(&id)
		m.cipherSuites = append(m.cipherSuites, id)
	}

	var compressions cryptobyte.String
	if !body.ReadUint8LengthPrefixed(&compressions) || compressions.Empty() {
		return nil, protocolError("malformed ClientHello compression methods")
	}
	m.compressionMethods = compressions

	// Extensions are optional in TLS 1.0 and this engine assigns them no
	// semantics, but the block must still frame correctly.
	if !body.Empty() {
		var extensions cryptobyte.String
		if !body.ReadUint16LengthPrefixed(&extensions) || !body.Empty() {
			return nil, protocolError("malformed ClientHello extensions")
		}
		m.extensions = extensions
	}

	return m, nil
}

func (m *clientHelloMsg) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typeClientHello))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16(m.vers)
		b.AddBytes(m.random)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.sessionID)
		})
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, suite := range m.cipherSuites {
				b.AddUint16(suite)
			}
		})
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.compressionMethods)
		})
		if len(m.extensions) > 0 {
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(m.extensions)
			})
		}
	})
	return b.BytesOrPanic()
}

type serverHelloMsg struct {
	vers        uint16
	random      []byte
	sessionID   []byte
	cipherSuite uint16
}

// marshal emits the ServerHello this engine always sends: version {3,1},
// empty session id, null compression, empty extension list.
func (m *serverHelloMsg) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typeServerHello))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16(m.vers)
		b.AddBytes(m.random)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.sessionID)
		})
		b.AddUint16(m.cipherSuite)
		b.AddUint8(0) // null compression
		b.AddUint16(0) // empty extensions
	})
	return b.BytesOrPanic()
}

func parseServerHello(data []byte) (*serverHelloMsg, error) {
	m := &serverHelloMsg{}
	s := cryptobyte.String(data)

	var msgType uint8
	var body cryptobyte.String
	if !s.ReadUint8(&msgType) || HandshakeType(msgType) != typeServerHello ||
		!s.ReadUint24LengthPrefixed(&body) || !s.Empty() {
		return nil, protocolError("malformed ServerHello framing")
	}
	var sessionID cryptobyte.String
	var compression uint8
	if !body.ReadUint16(&m.vers) || !body.ReadBytes(&m.random, randomLength) ||
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16(&m.cipherSuite) || !body.ReadUint8(&compression) {
		return nil, protocolError("ServerHello too short")
	}
	m.sessionID = sessionID
	return m, nil
}

type certificateMsg struct {
	certificates [][]byte // DER certificates, leaf first
}

func (m *certificateMsg) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typeCertificate))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			for _, cert := range m.certificates {
				b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
					b.AddBytes(cert)
				})
			}
		})
	})
	return b.BytesOrPanic()
}

func parseCertificate(data []byte) (*certificateMsg, error) {
	m := &certificateMsg{}
	s := cryptobyte.String(data)

	var msgType uint8
	var body, list cryptobyte.String
	if !s.ReadUint8(&msgType) || HandshakeType(msgType) != typeCertificate ||
		!s.ReadUint24LengthPrefixed(&body) || !s.Empty() ||
		!body.ReadUint24LengthPrefixed(&list) || !body.Empty() {
		return nil, protocolError("malformed Certificate framing")
	}
	for !list.Empty() {
		var cert cryptobyte.String
		if !list.ReadUint24LengthPrefixed(&cert) {
			return nil, protocolError("malformed certificate entry")
		}
		m.certificates = append(m.certificates, cert)
	}
	return m, nil
}

func marshalServerHelloDone() []byte {
	return []byte{uint8(typeServerHelloDone), 0, 0, 0}
}

type clientKeyExchangeMsg struct {
	encryptedPreMaster []byte
}

// RSA key exchange only: the body is a 2-byte-length-prefixed PKCS#1
// ciphertext (RFC 2246 Section 7.4.7.1).
func parseClientKeyExchange(data []byte) (*clientKeyExchangeMsg, error) {
	m := &clientKeyExchangeMsg{}
	s := cryptobyte.String(data)

	var msgType uint8
	var body, encrypted cryptobyte.String
	if !s.ReadUint8(&msgType) || HandshakeType(msgType) != typeClientKeyExchange ||
		!s.ReadUint24LengthPrefixed(&body) || !s.Empty() ||
		!body.ReadUint16LengthPrefixed(&encrypted) || !body.Empty() || encrypted.Empty() {
		return nil, protocolError("malformed ClientKeyExchange")
	}
	m.encryptedPreMaster = encrypted
	return m, nil
}

func (m *clientKeyExchangeMsg) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typeClientKeyExchange))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(m.encryptedPreMaster)
		})
	})
	return b.BytesOrPanic()
}

type finishedMsg struct {
	verifyData []byte // exactly 12 bytes
}

func parseFinished(data []byte) (*finishedMsg, error) {
	m := &finishedMsg{}
	s := cryptobyte.String(data)

	var msgType uint8
	var body cryptobyte.String
	if !s.ReadUint8(&msgType) || HandshakeType(msgType) != typeFinished ||
		!s.ReadUint24LengthPrefixed(&body) || !s.Empty() {
		return nil, protocolError("malformed Finished framing")
	}
	if len(body) != finishedVerifyLength {
		return nil, protocolError("Finished verify_data is %d bytes, want %d", len(body), finishedVerifyLength)
	}
	m.verifyData = body
	return m, nil
}

func (m *finishedMsg) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(typeFinished))
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.verifyData)
	})
	return b.BytesOrPanic()
}

// changeCipherSpecBody is the one legal CCS fragment.
var changeCipherSpecBody = []byte{1}

// parseAlert decodes a two-byte alert fragment into (level, description).
func parseAlert(data []byte) (level, desc uint8, err error) {
	if len(data) != 2 {
		return 0, 0, protocolError("alert fragment is %d bytes, want 2", len(data))
	}
	return data[0], data[1], nil
}

func assembleAlert(level, desc uint8) []byte {
	return assembleRecord(recordTypeAlert, []byte{level, desc})
}
