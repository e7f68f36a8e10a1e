// internal/security/secrets.go
// Symmetric encryption for integration credentials at rest.
// Payload layout: base64(iv[16] || ciphertext). Both directions fail closed:
// any malformed input yields "", never an error, so callers can fall back to
// treating a stored value as legacy plaintext.

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

// Secrets encrypts and decrypts provider credentials with a key derived
// from the application secret.
type Secrets struct {
	key []byte
}

// NewSecrets derives a 256-bit AES key from the application secret via
// HKDF-SHA256. The application secret is mandatory (config refuses to start
// without one), so there is no fallback key.
func NewSecrets(appSecret string) *Secrets {
	kdf := hkdf.New(sha256.New, []byte(appSecret), nil, []byte("formhive/credential-encryption"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		// HKDF over SHA-256 can produce far more than 32 bytes; this
		// cannot fail for a fixed-size read.
		panic(err)
	}
	return &Secrets{key: key}
}

// Encrypt returns base64(iv || AES-CBC(plaintext)). Empty input or a cipher
// failure yields "".
func (s *Secrets) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return ""
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))

	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return ""
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Malformed, truncated or foreign-keyed payloads
// yield "" so the caller can fall back to legacy plaintext handling.
func (s *Secrets) Decrypt(payload string) string {
	if payload == "" {
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ""
	}
	if len(raw) <= aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return ""
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return ""
	}

	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok || !utf8.Valid(plain) {
		return ""
	}
	return string(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
