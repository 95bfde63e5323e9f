package rng

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
)

// KeySeeded is a deterministic generator derived from a secret key. The same
// key and salt always produce the same output, which makes generated
// passwords reproducible from a master password.
type KeySeeded struct {
	stream cipher.Stream
}

// NewKeySeeded returns a deterministic AES-256-CTR generator keyed with
// HMAC-SHA256(salt, key).
func NewKeySeeded(key, salt []byte) (*KeySeeded, error) {
	mac := hmac.New(sha256.New, salt)
	_, _ = mac.Write(key)
	derived := mac.Sum(nil)
	defer clear(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, err
	}
	return &KeySeeded{
		stream: cipher.NewCTR(block, make([]byte, aes.BlockSize)),
	}, nil
}

// Read fills b with deterministic output.
func (k *KeySeeded) Read(b []byte) (int, error) {
	clear(b)
	k.stream.XORKeyStream(b, b)
	return len(b), nil
}
