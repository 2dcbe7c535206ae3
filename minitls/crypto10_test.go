package minitls

import (
	"bytes"
	"crypto/rand"
	"testing"
)

// contextPair builds matching write/read contexts for one direction of one
// cipher epoch.
func contextPair(t *testing.T, suite *CipherSuiteInfo) (*cryptoContext, *cryptoContext) {
	t.Helper()
	key := make([]byte, suite.KeyLength)
	iv := make([]byte, suite.IVLength)
	macKey := make([]byte, suite.MACLength)
	rand.Read(key)
	rand.Read(iv)
	rand.Read(macKey)

	write, err := newCryptoContext(suite, key, iv, macKey)
	if err != nil {
		t.Fatalf("write context: %v", err)
	}
	read, err := newCryptoContext(suite, key, iv, macKey)
	if err != nil {
		t.Fatalf("read context: %v", err)
	}
	return write, read
}

func TestRecordProtectionRoundTrip(t *testing.T) {
	for i := range SupportedCipherSuites {
		suite := &SupportedCipherSuites[i]
		t.Run(suite.Name, func(t *testing.T) {
			write, read := contextPair(t, suite)

			// Several records back to back: exercises sequence numbers,
			// the chained IV for block suites and the running key stream
			// for RC4.
			payloads := [][]byte{
				[]byte("first record"),
				bytes.Repeat([]byte{0x42}, 513),
				{},
			}
			for n, plaintext := range payloads {
				ciphertext, err := write.encrypt(recordTypeApplicationData, plaintext)
				if err != nil {
					t.Fatalf("encrypt record %d: %v", n, err)
				}
				if suite.Kind == cipherKindBlock && len(ciphertext)%suite.BlockSize != 0 {
					t.Errorf("record %d ciphertext not block aligned: %d", n, len(ciphertext))
				}
				if bytes.Contains(ciphertext, plaintext) && len(plaintext) > 0 {
					t.Errorf("record %d ciphertext contains plaintext", n)
				}

				decrypted, err := read.decrypt(recordTypeApplicationData, ciphertext)
				if err != nil {
					t.Fatalf("decrypt record %d: %v", n, err)
				}
				if !bytes.Equal(decrypted, plaintext) {
					t.Errorf("record %d round trip mismatch", n)
				}
			}

			if write.seq != uint64(len(payloads)) || read.seq != uint64(len(payloads)) {
				t.Errorf("sequence numbers: write %d read %d, want %d", write.seq, read.seq, len(payloads))
			}
		})
	}
}

func TestDecryptRejectsTamperedMAC(t *testing.T) {
	for i := range SupportedCipherSuites {
		suite := &SupportedCipherSuites[i]
		t.Run(suite.Name, func(t *testing.T) {
			write, read := contextPair(t, suite)

			ciphertext, err := write.encrypt(recordTypeApplicationData, []byte("sensitive"))
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			ciphertext[len(ciphertext)-1] ^= 0x01

			_, err = read.decrypt(recordTypeApplicationData, ciphertext)
			if err == nil {
				t.Fatal("tampered record decrypted successfully")
			}
			if kind, ok := ErrorKindOf(err); !ok || kind != ErrorBadMAC {
				t.Errorf("error kind: got %v, want %v", kind, ErrorBadMAC)
			}
		})
	}
}

func TestDecryptRejectsWrongSequence(t *testing.T) {
	suite := cipherSuiteByID(TLS_RSA_WITH_3DES_EDE_CBC_SHA)
	write, read := contextPair(t, suite)

	first, err := write.encrypt(recordTypeApplicationData, []byte("one"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := write.encrypt(recordTypeApplicationData, []byte("two"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// Replaying the second record first desynchronizes both the chained
	// IV and the MAC sequence number.
	if _, err := read.decrypt(recordTypeApplicationData, second); err == nil {
		t.Error("out-of-order record accepted")
	}
	_ = first
}

func TestDecryptRejectsWrongContentType(t *testing.T) {
	suite := cipherSuiteByID(TLS_RSA_WITH_AES_128_CBC_SHA)
	write, read := contextPair(t, suite)

	ciphertext, err := write.encrypt(recordTypeHandshake, []byte("finished"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	// The content type is MACed, so retyping the record must fail.
	if _, err := read.decrypt(recordTypeApplicationData, ciphertext); err == nil {
		t.Error("retyped record accepted")
	}
}

func TestDecryptRejectsBadBlockLength(t *testing.T) {
	suite := cipherSuiteByID(TLS_RSA_WITH_3DES_EDE_CBC_SHA)
	_, read := contextPair(t, suite)

	_, err := read.decrypt(recordTypeApplicationData, make([]byte, 21))
	if err == nil {
		t.Fatal("unaligned ciphertext accepted")
	}
	if kind, ok := ErrorKindOf(err); !ok || kind != ErrorBadMAC {
		t.Errorf("error kind: got %v, want %v", kind, ErrorBadMAC)
	}
}

func TestRemovePadding(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
		want    []byte
		wantErr bool
	}{
		{name: "one byte of padding", payload: []byte{0xaa, 0xbb, 0x00}, want: []byte{0xaa, 0xbb}},
		{name: "three bytes of padding", payload: []byte{0xaa, 0x02, 0x02, 0x02}, want: []byte{0xaa}},
		{name: "whole record is padding", payload: []byte{0x03, 0x03, 0x03, 0x03}, want: []byte{}},
		{name: "padding byte mismatch", payload: []byte{0xaa, 0x01, 0x02, 0x02}, wantErr: true},
		{name: "padding longer than record", payload: []byte{0xaa, 0x07}, wantErr: true},
		{name: "empty", payload: []byte{}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := removePadding(tc.payload)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("removePadding: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got %x, want %x", got, tc.want)
			}
		})
	}
}

func TestChainedIVAcrossRecords(t *testing.T) {
	suite := cipherSuiteByID(TLS_RSA_WITH_AES_128_CBC_SHA)
	write, _ := contextPair(t, suite)

	first, err := write.encrypt(recordTypeApplicationData, []byte("record one"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	lastBlock := first[len(first)-suite.BlockSize:]
	if !bytes.Equal(write.iv, lastBlock) {
		t.Error("write IV was not replaced by the last ciphertext block")
	}
}
