package shared

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateSelfSigned(t *testing.T) {
	chain, key, err := GenerateSelfSigned("unit-test")
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("chain length: got %d, want 1", len(chain))
	}
	if key == nil {
		t.Fatal("nil key")
	}

	cert, err := x509.ParseCertificate(chain[0])
	if err != nil {
		t.Fatalf("generated certificate does not parse: %v", err)
	}
	if cert.Subject.CommonName != "unit-test" {
		t.Errorf("common name: got %q", cert.Subject.CommonName)
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		t.Error("certificate public key does not match generated key")
	}
}

func TestLoadCertificateRoundTrip(t *testing.T) {
	chain, key, err := GenerateSelfSigned("load-test")
	if err != nil {
		t.Fatalf("GenerateSelfSigned: %v", err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: chain[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	loadedChain, loadedKey, err := LoadCertificate(certFile, keyFile)
	if err != nil {
		t.Fatalf("LoadCertificate: %v", err)
	}
	if len(loadedChain) != 1 {
		t.Fatalf("loaded chain length: got %d, want 1", len(loadedChain))
	}
	if !loadedKey.Equal(key) {
		t.Error("loaded key differs from generated key")
	}

	if _, _, err := LoadCertificate(filepath.Join(dir, "missing.pem"), keyFile); err == nil {
		t.Error("expected error for missing certificate file")
	}
}
