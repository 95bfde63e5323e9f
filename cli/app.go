package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/safing/pwgen/dataroot"
	"github.com/safing/pwgen/entropy"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
	"github.com/safing/pwgen/modules"
	"github.com/safing/pwgen/passwgen"
	"github.com/safing/pwgen/rng"
)

const (
	osFeedInterval = time.Minute
	workerBackoff  = time.Second
)

var (
	pool       *rng.Pool
	entropyMgr *entropy.Manager
	sampler    *entropy.SystemSampler
	generator  *passwgen.Generator

	randomModule   *modules.Module
	passwgenModule *modules.Module
)

func init() {
	randomModule = modules.Register("random", startRandom, stopRandom)
	passwgenModule = modules.Register("passwgen", startPasswgen, nil)
}

func startRandom() error {
	opts, err := rng.OptionsFromConfig()
	if err != nil {
		return err
	}
	pool, err = rng.New(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize random pool: %w", err)
	}

	caps, err := entropy.CapsFromConfig()
	if err != nil {
		return err
	}
	entropyMgr = entropy.NewManager(pool, pool, caps)
	root, err := dataroot.Root()
	if err != nil {
		return err
	}
	sampler = entropy.NewSystemSampler(root)
	entropyMgr.AddSystemEntropy(sampler)
	if err := entropy.FeedOS(entropyMgr); err != nil {
		log.Warningf("random: %s", err)
	}

	seedFile, err := dataroot.SeedFile()
	if err != nil {
		return err
	}
	if err := pool.ReadSeedFile(seedFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("random: no seed file yet at %s", seedFile)
		} else {
			log.Warningf("random: %s", err)
		}
	}
	// Replace the seed file right away, so that it is never used twice.
	if err := writeSeed(); err != nil {
		log.Warningf("random: %s", err)
	}

	metrics.RegisterGauge("pwgen_entropy_pool_bits", func() float64 {
		return float64(entropyMgr.Bits())
	})

	schedule, err := rng.ScheduleFromConfig()
	if err != nil {
		return err
	}
	randomModule.StartServiceWorker("pool maintainer", workerBackoff, func(ctx context.Context) error {
		return pool.Maintain(ctx, schedule, rng.MaintenanceHooks{
			SampleSystem: func() { entropyMgr.AddSystemEntropy(sampler) },
			WriteSeed:    writeSeed,
		})
	})
	randomModule.StartServiceWorker("tick feeder", workerBackoff, func(ctx context.Context) error {
		return entropy.TickFeeder(ctx, entropyMgr)
	})
	randomModule.StartServiceWorker("os feeder", workerBackoff, func(ctx context.Context) error {
		return entropy.OSFeeder(ctx, entropyMgr, osFeedInterval)
	})
	return nil
}

func stopRandom() error {
	if pool == nil {
		return nil
	}
	return writeSeed()
}

func writeSeed() error {
	seedFile, err := dataroot.SeedFile()
	if err != nil {
		return err
	}
	return pool.WriteSeedFile(seedFile)
}

func startPasswgen() error {
	var err error
	generator, err = newGenerator(pool)
	return err
}

// newGenerator returns a generator drawing from r, configured from the
// config and the generate flags.
func newGenerator(r io.Reader) (*passwgen.Generator, error) {
	opts, err := passwgen.OptionsFromConfig()
	if err != nil {
		return nil, err
	}
	opts.Charset.ExcludeAmbiguous = genFlags.excludeAmbiguous

	g, err := passwgen.New(r, opts)
	if err != nil {
		return nil, err
	}

	commonPaths, err := passwgen.CommonPasswordsFromConfig()
	if err != nil {
		return nil, err
	}
	if len(commonPaths) > 0 {
		n, err := g.LoadCommonPasswords(commonPaths...)
		if err != nil {
			log.Warningf("passwgen: failed to load common passwords: %s", err)
		} else {
			log.Debugf("passwgen: loaded %d common passwords", n)
		}
	}
	return g, nil
}
