package crypto

import (
	"bytes"
	"crypto/ed25519"
	"path/filepath"
	"testing"
)

func TestGenerateSigningKey(t *testing.T) {
	pub, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey failed: %v", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		t.Errorf("expected %d byte private key, got %d", ed25519.PrivateKeySize, len(priv))
	}
	msg := []byte("catalog snapshot")
	sig := ed25519.Sign(priv, msg)
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("signature did not verify with generated keypair")
	}
}

func TestSaveLoadSigningKey(t *testing.T) {
	_, priv, err := GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signing.pem")
	if err := SaveSigningKey(priv, path); err != nil {
		t.Fatalf("SaveSigningKey failed: %v", err)
	}
	loaded, err := LoadSigningKey(path)
	if err != nil {
		t.Fatalf("LoadSigningKey failed: %v", err)
	}
	if !bytes.Equal(priv, loaded) {
		t.Error("loaded key differs from saved key")
	}
}

func TestDeriveRedactionKey(t *testing.T) {
	_, priv, _ := GenerateSigningKey()

	key, err := DeriveRedactionKey(priv, "audit-redaction-v1")
	if err != nil {
		t.Fatalf("DeriveRedactionKey failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(key))
	}
	// Same inputs → same key (deterministic)
	key2, _ := DeriveRedactionKey(priv, "audit-redaction-v1")
	if !bytes.Equal(key, key2) {
		t.Error("redaction key derivation should be deterministic")
	}
	// Different context → different key
	key3, _ := DeriveRedactionKey(priv, "audit-redaction-v2")
	if bytes.Equal(key, key3) {
		t.Error("different contexts should yield different keys")
	}
}
