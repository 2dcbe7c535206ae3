package minitls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/md5"
	"crypto/sha1"
	"hash"
)

// TLS 1.0 RSA key exchange cipher suites (RFC 2246 Appendix A.5)
const (
	TLS_RSA_WITH_RC4_128_MD5       = 0x0004
	TLS_RSA_WITH_RC4_128_SHA       = 0x0005
	TLS_RSA_WITH_3DES_EDE_CBC_SHA  = 0x000a
	TLS_RSA_WITH_AES_128_CBC_SHA   = 0x002f
	TLS_RSA_WITH_AES_256_CBC_SHA   = 0x0035
	TLS_NULL_WITH_NULL_NULL        = 0x0000
)

type cipherKind int

const (
	cipherKindStream cipherKind = iota
	cipherKindBlock
)

// CipherSuiteInfo contains metadata about a cipher suite. The suite id is the
// sole source of truth for every algorithm choice downstream of negotiation.
type CipherSuiteInfo struct {
	ID        uint16
	Name      string
	ShortName string
	Kind      cipherKind
	KeyLength int // cipher key length in bytes
	BlockSize int // cipher block size; 0 for stream ciphers
	IVLength  int // record IV length; 0 for stream ciphers
	MACLength int // record MAC length (hash output size)
	macHash   func() hash.Hash
	newBlock  func(key []byte) (cipher.Block, error) // nil for stream ciphers
}

// SupportedCipherSuites lists the suites this engine implements, in server
// preference order. All use RSA key exchange, so every one sends a
// Certificate message.
var SupportedCipherSuites = []CipherSuiteInfo{
	{
		ID:        TLS_RSA_WITH_3DES_EDE_CBC_SHA,
		Name:      "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
		ShortName: "DES-CBC3-SHA",
		Kind:      cipherKindBlock,
		KeyLength: 24,
		BlockSize: 8,
		IVLength:  8,
		MACLength: sha1.Size,
		macHash:   sha1.New,
		newBlock:  des.NewTripleDESCipher,
	},
	{
		ID:        TLS_RSA_WITH_AES_128_CBC_SHA,
		Name:      "TLS_RSA_WITH_AES_128_CBC_SHA",
		ShortName: "AES128-SHA",
		Kind:      cipherKindBlock,
		KeyLength: 16,
		BlockSize: 16,
		IVLength:  16,
		MACLength: sha1.Size,
		macHash:   sha1.New,
		newBlock:  aes.NewCipher,
	},
	{
		ID:        TLS_RSA_WITH_AES_256_CBC_SHA,
		Name:      "TLS_RSA_WITH_AES_256_CBC_SHA",
		ShortName: "AES256-SHA",
		Kind:      cipherKindBlock,
		KeyLength: 32,
		BlockSize: 16,
		IVLength:  16,
		MACLength: sha1.Size,
		macHash:   sha1.New,
		newBlock:  aes.NewCipher,
	},
	{
		ID:        TLS_RSA_WITH_RC4_128_SHA,
		Name:      "TLS_RSA_WITH_RC4_128_SHA",
		ShortName: "RC4-SHA",
		Kind:      cipherKindStream,
		KeyLength: 16,
		MACLength: sha1.Size,
		macHash:   sha1.New,
	},
	{
		ID:        TLS_RSA_WITH_RC4_128_MD5,
		Name:      "TLS_RSA_WITH_RC4_128_MD5",
		ShortName: "RC4-MD5",
		Kind:      cipherKindStream,
		KeyLength: 16,
		MACLength: md5.Size,
		macHash:   md5.New,
	},
}

// keyBlockLength returns how much key material the suite consumes:
// two MAC keys, two cipher keys and two IVs (RFC 2246 Section 6.3).
func (s *CipherSuiteInfo) keyBlockLength() int {
	return 2*s.MACLength + 2*s.KeyLength + 2*s.IVLength
}

func cipherSuiteByID(id uint16) *CipherSuiteInfo {
	for i := range SupportedCipherSuites {
		if SupportedCipherSuites[i].ID == id {
			return &SupportedCipherSuites[i]
		}
	}
	return nil
}

// selectCipherSuite picks the first suite in server preference order that the
// client offered, or nil when nothing overlaps.
func selectCipherSuite(offered []uint16) *CipherSuiteInfo {
	for i := range SupportedCipherSuites {
		for _, id := range offered {
			if SupportedCipherSuites[i].ID == id {
				return &SupportedCipherSuites[i]
			}
		}
	}
	return nil
}
