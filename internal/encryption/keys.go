package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"cinelink/models"
)

const keySize = 2048

// KeyManager owns the server RSA keypair. It is constructed once at startup
// and handed to everything that needs envelope crypto; there is no ambient
// global. The private key persists to a PKCS#8 PEM file and is reloaded on
// subsequent starts — never regenerated while a valid file exists.
type KeyManager struct {
	fs      afero.Fs
	keyPath string
	private *rsa.PrivateKey
}

// NewKeyManager loads the private key from keyPath, generating and saving a
// fresh keypair when the file is absent or unreadable.
func NewKeyManager(fs afero.Fs, keyPath string) (*KeyManager, error) {
	m := &KeyManager{fs: fs, keyPath: keyPath}

	key, err := m.loadKey()
	if err == nil {
		m.private = key
		log.Printf("[encryption] loaded RSA key pair from %s", keyPath)
		return m, nil
	}
	if !os.IsNotExist(err) {
		log.Printf("[encryption] failed to load key from %s: %v, generating a new pair", keyPath, err)
	}

	if err := m.generateKey(); err != nil {
		return nil, err
	}
	log.Printf("[encryption] generated new RSA key pair at %s", keyPath)
	return m, nil
}

func (m *KeyManager) loadKey() (*rsa.PrivateKey, error) {
	raw, err := afero.ReadFile(m.fs, m.keyPath)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", m.keyPath)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s does not contain an RSA key", m.keyPath)
	}
	return key, nil
}

func (m *KeyManager) generateKey() error {
	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return fmt.Errorf("generate RSA key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if dir := filepath.Dir(m.keyPath); dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := afero.WriteFile(m.fs, m.keyPath, block, 0o600); err != nil {
		return fmt.Errorf("save private key: %w", err)
	}
	m.private = key
	return nil
}

// PublicKeyPEM returns the public half in SubjectPublicKeyInfo PEM form.
func (m *KeyManager) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&m.private.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// PublicKeyInfo returns the public key bundle served by the distribution
// endpoint. It is public by design and requires no authentication.
func (m *KeyManager) PublicKeyInfo() (models.PublicKeyInfo, error) {
	pemStr, err := m.PublicKeyPEM()
	if err != nil {
		return models.PublicKeyInfo{}, err
	}
	return models.PublicKeyInfo{
		PublicKey: pemStr,
		KeySize:   keySize,
		Algorithm: "RSA",
	}, nil
}
