package crypttext

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/safing/pwgen/container"
	"github.com/safing/pwgen/formats/varint"
)

const (
	legacySaltSize   = 16
	legacyIterations = 8192
	legacyKeySize    = 32
	legacyMACSize    = sha256.Size
)

// legacyPassword returns the Windows-1252 encoding of a UTF-8 password.
// Characters without a mapping are replaced.
func legacyPassword(password []byte) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := enc.Bytes(password)
	if err != nil {
		// invalid UTF-8 is used as is
		return append([]byte(nil), password...)
	}
	return out
}

// legacyKeys derives the cipher and MAC keys. The caller must destroy both.
func legacyKeys(password, salt []byte) (enc, mac *memguard.LockedBuffer, err error) {
	pw := legacyPassword(password)
	defer memguard.WipeBytes(pw)

	material := pbkdf2.Key(pw, salt, legacyIterations, 2*legacyKeySize, sha256.New)
	macKey := append([]byte(nil), material[legacyKeySize:]...)
	enc, err = lockKey(material[:legacyKeySize])
	memguard.WipeBytes(material)
	if err != nil {
		memguard.WipeBytes(macKey)
		return nil, nil, err
	}
	mac, err = lockKey(macKey)
	if err != nil {
		enc.Destroy()
		return nil, nil, err
	}
	return enc, mac, nil
}

func legacyMAC(key []byte, version uint8, salt, ciphertext []byte) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write(varint.Pack8(version))
	_, _ = m.Write(salt)
	_, _ = m.Write(ciphertext)
	return m.Sum(nil)
}

func xorCTR(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, make([]byte, aes.BlockSize)).XORKeyStream(out, data)
	return out, nil
}

// sealLegacy appends salt, ciphertext and MAC. Every blob has its own salt
// and thus its own key, so the counter starts at zero.
func (c *Codec) sealLegacy(body *container.Container, version uint8, data, password []byte) error {
	salt := make([]byte, legacySaltSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return err
	}

	enc, mac, err := legacyKeys(password, salt)
	if err != nil {
		return err
	}
	defer enc.Destroy()
	defer mac.Destroy()

	ciphertext, err := xorCTR(enc.Bytes(), data)
	if err != nil {
		return err
	}
	body.AppendAsBlock(salt)
	body.Append(ciphertext)
	body.Append(legacyMAC(mac.Bytes(), version, salt, ciphertext))
	return nil
}

func openLegacy(body *container.Container, version uint8, password []byte) ([]byte, error) {
	salt, err := body.GetNextBlock()
	if err != nil || len(salt) != legacySaltSize {
		return nil, ErrDecryptionFailed
	}
	rest := body.GetAll()
	if len(rest) < legacyMACSize {
		return nil, ErrDecryptionFailed
	}
	ciphertext, tag := rest[:len(rest)-legacyMACSize], rest[len(rest)-legacyMACSize:]

	enc, mac, err := legacyKeys(password, salt)
	if err != nil {
		return nil, err
	}
	defer enc.Destroy()
	defer mac.Destroy()

	if !hmac.Equal(tag, legacyMAC(mac.Bytes(), version, salt, ciphertext)) {
		return nil, ErrDecryptionFailed
	}
	return xorCTR(enc.Bytes(), ciphertext)
}
