package crypttext

import (
	"math"
	"sync"

	"github.com/safing/pwgen/config"
)

// Params are the Argon2id parameters of new blobs.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	// MaxMemoryKiB bounds the memory a blob may demand on decryption.
	MaxMemoryKiB uint32
}

// Defaults.
const (
	DefaultTime         = 3
	DefaultMemoryKiB    = 64 * 1024
	DefaultThreads      = 4
	DefaultMaxMemoryKiB = 1024 * 1024

	maxUint32  = math.MaxUint32
	maxThreads = math.MaxUint8
	maxTime    = 1000
)

func (p Params) withDefaults() Params {
	if p.Time == 0 {
		p.Time = DefaultTime
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultMemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = DefaultThreads
	}
	if p.MaxMemoryKiB == 0 {
		p.MaxMemoryKiB = DefaultMaxMemoryKiB
	}
	p.MaxMemoryKiB = max(p.MaxMemoryKiB, p.MemoryKiB)
	return p
}

// Config keys.
const (
	CfgOptionArgon2TimeKey      = "crypttext/argon2_time"
	CfgOptionArgon2MemoryKey    = "crypttext/argon2_memory_kib"
	CfgOptionArgon2ThreadsKey   = "crypttext/argon2_threads"
	CfgOptionArgon2MaxMemoryKey = "crypttext/argon2_max_memory_kib"
)

var (
	registerOnce sync.Once
	registerErr  error

	paramOptions = []struct {
		key, name, regex string
		def              int64
		get              *config.IntOption
	}{
		{CfgOptionArgon2TimeKey, "Argon2 Passes", "^[1-9][0-9]{0,2}$", DefaultTime, new(config.IntOption)},
		{CfgOptionArgon2MemoryKey, "Argon2 Memory", "^[1-9][0-9]{3,6}$", DefaultMemoryKiB, new(config.IntOption)},
		{CfgOptionArgon2ThreadsKey, "Argon2 Threads", "^[1-9][0-9]?$", DefaultThreads, new(config.IntOption)},
		{CfgOptionArgon2MaxMemoryKey, "Argon2 Memory Limit", "^[1-9][0-9]{3,7}$", DefaultMaxMemoryKiB, new(config.IntOption)},
	}
)

// RegisterConfig registers the key derivation options.
func RegisterConfig() error {
	registerOnce.Do(func() {
		for _, opt := range paramOptions {
			err := config.Register(&config.Option{
				Name:            opt.name,
				Key:             opt.key,
				Description:     opt.name + " used to derive the key of encrypted text.",
				OptType:         config.OptTypeInt,
				ExpertiseLevel:  config.ExpertiseLevelExpert,
				DefaultValue:    opt.def,
				ValidationRegex: opt.regex,
			})
			if err != nil {
				registerErr = err
				return
			}
			*opt.get = config.GetAsInt(opt.key, opt.def)
		}
	})
	return registerErr
}

// ParamsFromConfig returns the configured parameters.
func ParamsFromConfig() (Params, error) {
	if err := RegisterConfig(); err != nil {
		return Params{}, err
	}
	return Params{
		Time:         uint32((*paramOptions[0].get)()),
		MemoryKiB:    uint32((*paramOptions[1].get)()),
		Threads:      uint8((*paramOptions[2].get)()),
		MaxMemoryKiB: uint32((*paramOptions[3].get)()),
	}.withDefaults(), nil
}
