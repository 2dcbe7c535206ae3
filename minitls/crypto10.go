package minitls

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rc4"
	"crypto/subtle"
	"encoding/binary"
)

// TLS 1.0 record protection (RFC 2246 Section 6.2.3)
//
// One cryptoContext covers one direction of one cipher epoch: sequence
// number, cipher state and MAC key. A nil *cryptoContext is the pre-CCS
// identity state that passes fragments through untouched.
//
// Block mode keeps TLS 1.0's chained IVs: the IV for record N+1 is the last
// ciphertext block of record N. This is the documented interoperability
// requirement (and known weakness, see BEAST); TLS 1.1+ replaced it with
// explicit per-record IVs.

type cryptoContext struct {
	seq    uint64
	suite  *CipherSuiteInfo
	key    []byte
	iv     []byte // block suites only; updated after every record
	macKey []byte

	stream *rc4.Cipher  // stream suites only; stateful across records
	block  cipher.Block // block suites only
}

func newCryptoContext(suite *CipherSuiteInfo, key, iv, macKey []byte) (*cryptoContext, error) {
	c := &cryptoContext{
		suite:  suite,
		key:    append([]byte(nil), key...),
		macKey: append([]byte(nil), macKey...),
	}
	switch suite.Kind {
	case cipherKindStream:
		stream, err := rc4.NewCipher(key)
		if err != nil {
			return nil, cryptoError(err, "stream cipher init")
		}
		c.stream = stream
	case cipherKindBlock:
		block, err := suite.newBlock(key)
		if err != nil {
			return nil, cryptoError(err, "block cipher init")
		}
		c.block = block
		c.iv = append([]byte(nil), iv...)
	}
	return c, nil
}

// computeMAC produces the TLS 1.0 record MAC:
// HMAC_hash(mac_key, seq_num(8) + type(1) + version(2) + length(2) + fragment).
func (c *cryptoContext) computeMAC(typ uint8, fragment []byte) []byte {
	mac := hmac.New(c.suite.macHash, c.macKey)
	var header [13]byte
	binary.BigEndian.PutUint64(header[0:8], c.seq)
	header[8] = typ
	binary.BigEndian.PutUint16(header[9:11], VersionTLS10)
	binary.BigEndian.PutUint16(header[11:13], uint16(len(fragment)))
	mac.Write(header[:])
	mac.Write(fragment)
	return mac.Sum(nil)
}

// encrypt MACs and encrypts one outbound fragment, advancing the sequence
// number.
func (c *cryptoContext) encrypt(typ uint8, plaintext []byte) ([]byte, error) {
	mac := c.computeMAC(typ, plaintext)

	payload := make([]byte, 0, len(plaintext)+len(mac)+c.suite.BlockSize)
	payload = append(payload, plaintext...)
	payload = append(payload, mac...)

	switch c.suite.Kind {
	case cipherKindStream:
		c.stream.XORKeyStream(payload, payload)
	case cipherKindBlock:
		blockSize := c.block.BlockSize()
		padLen := blockSize - len(payload)%blockSize
		for i := 0; i < padLen; i++ {
			payload = append(payload, byte(padLen-1))
		}
		cbc := cipher.NewCBCEncrypter(c.block, c.iv)
		cbc.CryptBlocks(payload, payload)
		copy(c.iv, payload[len(payload)-blockSize:])
	}

	c.seq++
	return payload, nil
}

// decrypt reverses the cipher, validates padding and verifies the MAC,
// advancing the sequence number on success.
func (c *cryptoContext) decrypt(typ uint8, ciphertext []byte) ([]byte, error) {
	payload := make([]byte, len(ciphertext))
	copy(payload, ciphertext)

	switch c.suite.Kind {
	case cipherKindStream:
		c.stream.XORKeyStream(payload, payload)
	case cipherKindBlock:
		blockSize := c.block.BlockSize()
		if len(payload) == 0 || len(payload)%blockSize != 0 {
			return nil, badMACError("ciphertext length %d not a block multiple", len(payload))
		}
		nextIV := make([]byte, blockSize)
		copy(nextIV, payload[len(payload)-blockSize:])
		cbc := cipher.NewCBCDecrypter(c.block, c.iv)
		cbc.CryptBlocks(payload, payload)
		c.iv = nextIV

		var err error
		payload, err = removePadding(payload)
		if err != nil {
			return nil, err
		}
	}

	macLen := c.suite.MACLength
	if len(payload) < macLen {
		return nil, badMACError("record shorter than its MAC")
	}
	body := payload[:len(payload)-macLen]
	received := payload[len(payload)-macLen:]

	expected := c.computeMAC(typ, body)
	if subtle.ConstantTimeCompare(expected, received) != 1 {
		return nil, badMACError("record MAC mismatch")
	}

	c.seq++
	return body, nil
}

// removePadding strips TLS 1.0 CBC padding, checking that every padding byte
// equals the padding length. The check accumulates a verdict instead of
// branching per byte.
func removePadding(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, badMACError("empty ciphertext")
	}
	padLen := int(payload[len(payload)-1]) + 1
	if padLen > len(payload) {
		return nil, badMACError("padding length %d exceeds record", padLen)
	}

	good := byte(0)
	want := payload[len(payload)-1]
	for _, b := range payload[len(payload)-padLen:] {
		good |= b ^ want
	}
	if good != 0 {
		return nil, badMACError("malformed block padding")
	}
	return payload[:len(payload)-padLen], nil
}
