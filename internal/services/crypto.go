package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// PhoneCipher encrypts payer phone numbers before they reach the database.
// AES-256-GCM; ciphertexts are base64(nonce || sealed).
type PhoneCipher struct {
	aead cipher.AEAD
}

// NewPhoneCipher accepts the key as 64 hex characters or 32 raw bytes.
func NewPhoneCipher(key string) (*PhoneCipher, error) {
	var kb []byte
	if len(key) == 64 {
		b, err := hex.DecodeString(key)
		if err != nil {
			return nil, errors.New("phone cipher key: invalid hex")
		}
		kb = b
	} else if len(key) == 32 {
		kb = []byte(key)
	} else {
		return nil, errors.New("phone cipher key must be 32 bytes or 64 hex chars")
	}

	block, err := aes.NewCipher(kb)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &PhoneCipher{aead: aead}, nil
}

func (c *PhoneCipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *PhoneCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("phone ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
