package crypttext

import (
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/safing/pwgen/container"
	"github.com/safing/pwgen/formats/varint"
)

const saltSize = 16

// errMemoryDemand is returned by open if the key derivation would need more
// memory than allowed.
var errMemoryDemand = errors.New("memory demand exceeds the limit")

// seal appends the key derivation parameters, salt, nonce and the sealed
// data. The version is authenticated as additional data.
func (c *Codec) seal(body *container.Container, version uint8, data, password []byte) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return err
	}

	p := c.params
	key, err := lockKey(argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, chacha20poly1305.KeySize))
	if err != nil {
		return err
	}
	defer key.Destroy()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return err
	}

	body.AppendNumber(uint64(p.Time))
	body.AppendNumber(uint64(p.MemoryKiB))
	body.AppendNumber(uint64(p.Threads))
	body.AppendAsBlock(salt)
	body.AppendAsBlock(nonce)
	body.Append(aead.Seal(nil, nonce, data, varint.Pack8(version)))
	return nil
}

func (c *Codec) open(body *container.Container, version uint8, password []byte) ([]byte, error) {
	var p Params
	for _, v := range []*uint32{&p.Time, &p.MemoryKiB} {
		n, err := body.GetNextN64()
		if err != nil || n == 0 || n > maxUint32 {
			return nil, ErrDecryptionFailed
		}
		*v = uint32(n)
	}
	threads, err := body.GetNextN64()
	if err != nil || threads == 0 || threads > maxThreads {
		return nil, ErrDecryptionFailed
	}
	p.Threads = uint8(threads)
	if p.Time > maxTime {
		return nil, ErrDecryptionFailed
	}
	if p.MemoryKiB > c.params.MaxMemoryKiB {
		return nil, errMemoryDemand
	}

	salt, err := body.GetNextBlock()
	if err != nil || len(salt) != saltSize {
		return nil, ErrDecryptionFailed
	}
	nonce, err := body.GetNextBlock()
	if err != nil || len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrDecryptionFailed
	}
	sealed := body.GetAll()

	key, err := lockKey(argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, chacha20poly1305.KeySize))
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, err
	}
	data, err := aead.Open(nil, nonce, sealed, varint.Pack8(version))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return data, nil
}
