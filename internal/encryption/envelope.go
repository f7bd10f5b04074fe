package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Envelope is the wire shape of a hybrid-encrypted payload: the data is
// AES-256-CBC encrypted under a per-message session key, and the session key
// is RSA-OAEP encrypted under the recipient's public key. In the reply-reuse
// mode the session key field is empty because the client already holds it.
type Envelope struct {
	EncryptedData       string `json:"encrypted_data"`
	EncryptedSessionKey string `json:"encrypted_session_key"`
}

// ErrDecryptFailed is the only error surfaced for any decryption problem —
// bad padding, wrong key, malformed base64. Which step failed is deliberately
// not leaked.
var ErrDecryptFailed = errors.New("failed to decrypt payload")

const (
	sessionKeySize = 32 // AES-256
	ivSize         = aes.BlockSize
)

// IsEnvelope reports whether a decoded JSON body carries the envelope fields.
func IsEnvelope(body map[string]any) bool {
	_, hasData := body["encrypted_data"]
	_, hasKey := body["encrypted_session_key"]
	return hasData && hasKey
}

// EncryptPayload encrypts data under a fresh session key and wraps the key
// with the server's own public key. Used by the echo/test endpoint and by
// tests doubling as a client.
func (m *KeyManager) EncryptPayload(data []byte) (Envelope, error) {
	return EncryptPayloadFor(data, &m.private.PublicKey)
}

// EncryptPayloadFor encrypts data for an arbitrary recipient public key.
func EncryptPayloadFor(data []byte, pub *rsa.PublicKey) (Envelope, error) {
	sessionKey := make([]byte, sessionKeySize)
	if _, err := io.ReadFull(rand.Reader, sessionKey); err != nil {
		return Envelope{}, fmt.Errorf("generate session key: %w", err)
	}

	encryptedData, err := aesEncrypt(data, sessionKey)
	if err != nil {
		return Envelope{}, err
	}

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, sessionKey, nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("encrypt session key: %w", err)
	}

	return Envelope{
		EncryptedData:       encryptedData,
		EncryptedSessionKey: base64.StdEncoding.EncodeToString(encryptedKey),
	}, nil
}

// EncryptWithSessionKey encrypts a reply with the session key extracted from
// the inbound request, skipping the RSA step. The session key field is sent
// back empty in this mode.
func EncryptWithSessionKey(data, sessionKey []byte) (Envelope, error) {
	encryptedData, err := aesEncrypt(data, sessionKey)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{EncryptedData: encryptedData, EncryptedSessionKey: ""}, nil
}

// DecryptPayload unwraps an envelope and returns the plaintext.
func (m *KeyManager) DecryptPayload(env Envelope) ([]byte, error) {
	data, _, err := m.DecryptPayloadSessionKey(env)
	return data, err
}

// DecryptPayloadSessionKey unwraps an envelope and additionally returns the
// session key so the reply can be encrypted with it.
func (m *KeyManager) DecryptPayloadSessionKey(env Envelope) ([]byte, []byte, error) {
	encryptedKey, err := base64.StdEncoding.DecodeString(env.EncryptedSessionKey)
	if err != nil {
		return nil, nil, ErrDecryptFailed
	}
	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, m.private, encryptedKey, nil)
	if err != nil {
		return nil, nil, ErrDecryptFailed
	}
	data, err := aesDecrypt(env.EncryptedData, sessionKey)
	if err != nil {
		return nil, nil, ErrDecryptFailed
	}
	return data, sessionKey, nil
}

// DecryptWithSessionKey decrypts data under a known session key.
func DecryptWithSessionKey(encryptedData string, sessionKey []byte) ([]byte, error) {
	data, err := aesDecrypt(encryptedData, sessionKey)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return data, nil
}

// aesEncrypt returns base64(IV || ciphertext) with a fresh random IV and
// PKCS#7 padding.
func aesEncrypt(data, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate IV: %w", err)
	}

	padded := pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, ivSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func aesDecrypt(encoded string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < ivSize+aes.BlockSize || (len(raw)-ivSize)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext length invalid")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv, ciphertext := raw[:ivSize], raw[ivSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Unpad validates every padding byte; a single inconsistent byte fails
// the whole decryption.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
