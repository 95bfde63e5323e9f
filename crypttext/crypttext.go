// Package crypttext encrypts text with a password into a versioned,
// text-safe blob.
//
// A blob is the base64 encoding of a varint version followed by the version
// specific body. Version 0 and 1 derive the key from the Windows-1252
// encoding of the password, version 2 from its UTF-8 encoding.
package crypttext

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/safing/pwgen/container"
	"github.com/safing/pwgen/formats/varint"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
)

// Versions.
const (
	// Version0 uses PBKDF2-SHA256, AES-256-CTR and HMAC-SHA256.
	Version0 uint8 = iota
	// Version1 is Version0 with compression.
	Version1
	// Version2 uses Argon2id, XChaCha20-Poly1305 and compression.
	Version2

	CurrentVersion = Version2
)

// MaxTextBytes is the maximum size of a plaintext.
const MaxTextBytes = 16 << 20

// Errors.
var (
	ErrNoText              = errors.New("no text available to process")
	ErrNoPassword          = errors.New("no password given")
	ErrTextTooLong         = errors.New("text is too long")
	ErrOutOfMemory         = errors.New("not enough memory to perform the operation")
	ErrDecryptionFailed    = errors.New("decryption failed: wrong password, corrupted or not encrypted text")
	ErrDecompressionFailed = errors.New("decryption successful, but decompression failed")
	ErrUnknownVersion      = errors.New("unknown version")
)

// Flusher is implemented by random sources that can be rekeyed.
type Flusher interface {
	Flush() error
}

// Codec encrypts and decrypts blobs. Salts and nonces are drawn from its
// random source, which is flushed after every encryption if it implements
// Flusher.
type Codec struct {
	rand   io.Reader
	params Params
}

// New returns a codec.
func New(r io.Reader, params Params) *Codec {
	return &Codec{
		rand:   r,
		params: params.withDefaults(),
	}
}

// Encrypt encrypts plaintext with the current version.
func (c *Codec) Encrypt(plaintext, password []byte) (string, error) {
	return c.EncryptVersion(plaintext, password, CurrentVersion)
}

// EncryptVersion encrypts plaintext with the given version. Versions other
// than the current one exist for compatibility testing only.
func (c *Codec) EncryptVersion(plaintext, password []byte, version uint8) (blob string, err error) {
	switch {
	case len(plaintext) == 0:
		return "", ErrNoText
	case len(plaintext) > MaxTextBytes:
		return "", ErrTextTooLong
	case len(password) == 0:
		return "", ErrNoPassword
	}

	data := plaintext
	if version >= Version1 {
		data, err = compress(plaintext)
		if err != nil {
			return "", err
		}
		defer memguard.WipeBytes(data)
	}

	body := container.New(varint.Pack8(version))
	switch version {
	case Version0, Version1:
		err = c.sealLegacy(body, version, data, password)
	case Version2:
		err = c.seal(body, version, data, password)
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	if err != nil {
		return "", err
	}

	if f, ok := c.rand.(Flusher); ok {
		if err := f.Flush(); err != nil {
			log.Warningf("crypttext: failed to flush random source: %s", err)
		}
	}

	metrics.Encryptions.Inc()
	return base64.StdEncoding.EncodeToString(body.CompileData()), nil
}

// Decrypt decrypts a blob. The declared version is tried first, then all
// earlier versions in descending order. It returns the plaintext and the
// version that decrypted it.
func (c *Codec) Decrypt(blob string, password []byte) ([]byte, uint8, error) {
	plaintext, version, err := c.decrypt(blob, password)
	if err != nil {
		metrics.DecryptionFailures.Inc()
		return nil, 0, err
	}
	metrics.Decryptions.Inc()
	return plaintext, version, nil
}

func (c *Codec) decrypt(blob string, password []byte) ([]byte, uint8, error) {
	blob = strings.Join(strings.Fields(blob), "")
	if blob == "" {
		return nil, 0, ErrNoText
	}
	if len(blob) > base64.StdEncoding.EncodedLen(MaxTextBytes+1024) {
		return nil, 0, ErrTextTooLong
	}
	if len(password) == 0 {
		return nil, 0, ErrNoPassword
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(raw) == 0 {
		return nil, 0, ErrDecryptionFailed
	}

	declared, n, err := varint.Unpack8(raw)
	if err != nil || declared > CurrentVersion {
		declared, n = CurrentVersion, 0
	}

	// A memory demand above the limit may be a corrupted field as well, so
	// earlier versions are still tried.
	var tooLarge bool
	for version := int(declared); version >= 0; version-- {
		body := container.New(raw[n:])
		var data []byte
		switch uint8(version) {
		case Version0, Version1:
			data, err = openLegacy(body, uint8(version), password)
		case Version2:
			data, err = c.open(body, uint8(version), password)
		}
		switch {
		case errors.Is(err, ErrDecryptionFailed):
			log.Tracef("crypttext: version %d failed", version)
			continue
		case errors.Is(err, errMemoryDemand):
			log.Tracef("crypttext: version %d exceeds the memory limit", version)
			tooLarge = true
			continue
		case err != nil:
			return nil, 0, err
		}

		if version == int(Version0) {
			return data, Version0, nil
		}
		plaintext, err := decompress(data)
		memguard.WipeBytes(data)
		if err != nil {
			return nil, 0, err
		}
		return plaintext, uint8(version), nil
	}
	if tooLarge {
		return nil, 0, fmt.Errorf("%w: %w", ErrDecryptionFailed, ErrOutOfMemory)
	}
	return nil, 0, ErrDecryptionFailed
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() {
		_ = r.Close()
	}()

	plaintext, err := io.ReadAll(io.LimitReader(r, MaxTextBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionFailed, err)
	}
	if len(plaintext) > MaxTextBytes {
		return nil, ErrTextTooLong
	}
	return plaintext, nil
}

// lockKey moves key into a locked buffer.
func lockKey(key []byte) (*memguard.LockedBuffer, error) {
	buf := memguard.NewBufferFromBytes(key)
	if !buf.IsAlive() {
		memguard.WipeBytes(key)
		return nil, ErrOutOfMemory
	}
	return buf, nil
}
