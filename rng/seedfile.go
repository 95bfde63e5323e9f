package rng

import (
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/safing/pwgen/crypto/hash"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
	"github.com/safing/pwgen/utils/renameio"
)

const (
	seedFileVersion = 1
	seedSize        = PoolSize
	maxSeedFileSize = 4096
)

// ErrInvalidSeedFile is returned when the seed file cannot be parsed or
// fails its checksum.
var ErrInvalidSeedFile = errors.New("rng: invalid seed file")

type seedFile struct {
	Version  uint8  `cbor:"1,keyasint"`
	Seed     []byte `cbor:"2,keyasint"`
	Checksum []byte `cbor:"3,keyasint"`
}

// ReadSeedFile merges the seed stored in the file into the pool. A failure
// leaves the pool unchanged.
func (p *Pool) ReadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rng: failed to read seed file: %w", err)
	}
	if len(data) > maxSeedFileSize {
		return fmt.Errorf("%w: file too large", ErrInvalidSeedFile)
	}

	var sf seedFile
	if err := cbor.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeedFile, err)
	}
	defer clear(sf.Seed)

	if sf.Version != seedFileVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSeedFile, sf.Version)
	}
	checksum, err := hash.FromBytes(sf.Checksum)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeedFile, err)
	}
	if !checksum.Matches(sf.Seed) {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidSeedFile)
	}

	if err := p.AddEntropy(sf.Seed); err != nil {
		return err
	}
	log.Debugf("rng: merged seed file %s", path)
	return nil
}

// WriteSeedFile derives a seed from the pool and writes it to the file. The
// written seed does not reveal the pool state, and the pool is remixed
// afterwards.
func (p *Pool) WriteSeedFile(path string) error {
	p.lock.Lock()
	if p.state == StateUninitialized {
		p.lock.Unlock()
		return ErrNotSelfTested
	}
	seed := p.derive(tagSeedOut)
	p.mix(tagSeedSeparate, timestamp())
	p.lock.Unlock()
	defer clear(seed)

	data, err := cbor.Marshal(&seedFile{
		Version:  seedFileVersion,
		Seed:     seed,
		Checksum: hash.Sum(seed, hash.BLAKE2B_512).Bytes(),
	})
	if err != nil {
		return fmt.Errorf("rng: failed to encode seed file: %w", err)
	}
	defer clear(data)

	if err := renameio.WriteFile(path, data, 0o0600); err != nil {
		return fmt.Errorf("rng: failed to write seed file: %w", err)
	}
	metrics.SeedFileWrites.Inc()
	return nil
}
