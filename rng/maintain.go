package rng

import (
	"context"
	"time"

	"github.com/safing/pwgen/log"
)

// Schedule holds the intervals of the periodic pool maintenance.
type Schedule struct {
	Touch         time.Duration
	SystemEntropy time.Duration
	Move          time.Duration
	SeedFile      time.Duration
}

// DefaultSchedule is the default maintenance schedule.
var DefaultSchedule = Schedule{
	Touch:         defaultTouchIntervalSeconds * time.Second,
	SystemEntropy: defaultSystemIntervalSeconds * time.Second,
	Move:          defaultMoveIntervalSeconds * time.Second,
	SeedFile:      defaultSeedFileIntervalSeconds * time.Second,
}

// MaintenanceHooks are called by Maintain. Nil hooks are skipped.
type MaintenanceHooks struct {
	// SampleSystem adds periodic system entropy.
	SampleSystem func()
	// WriteSeed persists the pool.
	WriteSeed func() error
}

// Maintain runs the periodic pool maintenance until the context is canceled.
func (p *Pool) Maintain(ctx context.Context, schedule Schedule, hooks MaintenanceHooks) error {
	touch := time.NewTicker(schedule.Touch)
	defer touch.Stop()
	system := time.NewTicker(schedule.SystemEntropy)
	defer system.Stop()
	move := time.NewTicker(schedule.Move)
	defer move.Stop()
	seed := time.NewTicker(schedule.SeedFile)
	defer seed.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-touch.C:
			if err := p.TouchPool(); err != nil {
				return err
			}

		case <-system.C:
			if hooks.SampleSystem != nil {
				hooks.SampleSystem()
			}

		case <-move.C:
			if err := p.MovePool(); err != nil {
				return err
			}

		case <-seed.C:
			if hooks.WriteSeed != nil {
				if err := hooks.WriteSeed(); err != nil {
					// non-fatal
					log.Warningf("rng: %s", err)
				}
			}
		}
	}
}
