package config

import (
	"sync"

	"github.com/tevino/abool"
)

var (
	validityFlag     = abool.NewBool(true)
	validityFlagLock sync.RWMutex
)

// getValidityFlag returns a flag that signifies if the configuration has been changed. This flag must not be changed, only read.
func getValidityFlag() *abool.AtomicBool {
	validityFlagLock.RLock()
	defer validityFlagLock.RUnlock()
	return validityFlag
}

// signalChanges marks the configs validtityFlag as dirty.
func signalChanges() {
	validityFlagLock.Lock()
	validityFlag.SetTo(false)
	validityFlag = abool.NewBool(true)
	validityFlagLock.Unlock()
}

// SetConfigOption sets a single value in the config.
func SetConfigOption(key string, value interface{}) error {
	option, err := GetOption(key)
	if err != nil {
		return err
	}

	option.Lock()
	if value == nil {
		option.activeValue = nil
	} else {
		valueCache, err := validateValue(option, value)
		if err != nil {
			option.Unlock()
			return err
		}
		option.activeValue = valueCache
	}
	option.Unlock()

	signalChanges()
	return nil
}

// ResetConfigOption removes the set value and returns the option to its
// default.
func ResetConfigOption(key string) error {
	return SetConfigOption(key, nil)
}
