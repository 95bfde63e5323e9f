package rng

import (
	"sync"
	"time"

	"github.com/safing/pwgen/config"
)

// Config keys.
const (
	CfgOptionCipherKey             = "random/pool_cipher"
	CfgOptionTouchIntervalKey      = "random/touch_interval_seconds"
	CfgOptionSystemIntervalKey     = "random/system_entropy_interval_seconds"
	CfgOptionMoveIntervalKey       = "random/move_interval_seconds"
	CfgOptionSeedFileIntervalKey   = "random/seed_file_interval_seconds"
	defaultCipherName              = "chacha20"
	intervalValidationRegex        = "^[1-9][0-9]{0,5}$"
	defaultTouchIntervalSeconds    = 2
	defaultSystemIntervalSeconds   = 10
	defaultMoveIntervalSeconds     = 300
	defaultSeedFileIntervalSeconds = 457
)

var (
	registerOnce sync.Once
	registerErr  error

	cfgOptionCipher           config.StringOption
	cfgOptionTouchInterval    config.IntOption
	cfgOptionSystemInterval   config.IntOption
	cfgOptionMoveInterval     config.IntOption
	cfgOptionSeedFileInterval config.IntOption
)

// RegisterConfig registers the config options of the pool. It may be called
// multiple times.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func registerConfig() error {
	err := config.Register(&config.Option{
		Name:            "Pool Cipher",
		Key:             CfgOptionCipherKey,
		Description:     "Keystream generator used to release output of the random pool.",
		OptType:         config.OptTypeString,
		ExpertiseLevel:  config.ExpertiseLevelExpert,
		DefaultValue:    defaultCipherName,
		ValidationRegex: "^(chacha20|chacha8|aes-ctr|serpent-ctr)$",
	})
	if err != nil {
		return err
	}
	cfgOptionCipher = config.GetAsString(CfgOptionCipherKey, defaultCipherName)

	intervals := []struct {
		key, name string
		def       int64
		opt       *config.IntOption
	}{
		{CfgOptionTouchIntervalKey, "Touch Interval", defaultTouchIntervalSeconds, &cfgOptionTouchInterval},
		{CfgOptionSystemIntervalKey, "System Entropy Interval", defaultSystemIntervalSeconds, &cfgOptionSystemInterval},
		{CfgOptionMoveIntervalKey, "Move Interval", defaultMoveIntervalSeconds, &cfgOptionMoveInterval},
		{CfgOptionSeedFileIntervalKey, "Seed File Interval", defaultSeedFileIntervalSeconds, &cfgOptionSeedFileInterval},
	}
	for _, interval := range intervals {
		err = config.Register(&config.Option{
			Name:            interval.name,
			Key:             interval.key,
			Description:     interval.name + " of the random pool maintenance, in seconds.",
			OptType:         config.OptTypeInt,
			ExpertiseLevel:  config.ExpertiseLevelDeveloper,
			DefaultValue:    interval.def,
			ValidationRegex: intervalValidationRegex,
		})
		if err != nil {
			return err
		}
		*interval.opt = config.GetAsInt(interval.key, interval.def)
	}

	return nil
}

// OptionsFromConfig returns pool options from the registered config.
func OptionsFromConfig() (Options, error) {
	if err := RegisterConfig(); err != nil {
		return Options{}, err
	}
	kind, err := ParseCipherKind(cfgOptionCipher())
	if err != nil {
		return Options{}, err
	}
	return Options{Cipher: kind}, nil
}

// ScheduleFromConfig returns the maintenance schedule from the registered config.
func ScheduleFromConfig() (Schedule, error) {
	if err := RegisterConfig(); err != nil {
		return Schedule{}, err
	}
	return Schedule{
		Touch:         time.Duration(cfgOptionTouchInterval()) * time.Second,
		SystemEntropy: time.Duration(cfgOptionSystemInterval()) * time.Second,
		Move:          time.Duration(cfgOptionMoveInterval()) * time.Second,
		SeedFile:      time.Duration(cfgOptionSeedFileInterval()) * time.Second,
	}, nil
}
