package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// GenerateSigningKey generates a fresh Ed25519 keypair for credential signing.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating signing key: %w", err)
	}
	return pub, priv, nil
}

// SaveSigningKey writes the private key to path as PKCS#8 PEM, mode 0600.
func SaveSigningKey(priv ed25519.PrivateKey, path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshaling signing key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// LoadSigningKey reads an Ed25519 private key from a PKCS#8 PEM file.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block in signing key file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("signing key is not Ed25519")
	}
	return priv, nil
}

// DeriveRedactionKey derives a 32-byte key from the signing key seed using
// HKDF-SHA256. Audit payloads hash caller subjects with this key so the log
// carries stable pseudonymous identifiers instead of raw subjects.
func DeriveRedactionKey(priv ed25519.PrivateKey, context string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, priv.Seed(), nil, []byte(context))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving redaction key: %w", err)
	}
	return key, nil
}
