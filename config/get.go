package config

import (
	"github.com/safing/pwgen/log"
)

type (
	// StringOption returns the current value of a string option.
	StringOption func() string
	// StringArrayOption returns the current value of a string list option.
	StringArrayOption func() []string
	// IntOption returns the current value of an int option.
	IntOption func() int64
	// BoolOption returns the current value of a bool option.
	BoolOption func() bool
)

// getter returns a function reading the option with the given key. The
// value is only looked up again after the config changed.
func getter[T any](key string, fallback T, convert func(any) (T, bool)) func() T {
	load := func() T {
		if v, ok := convert(findValue(key)); ok {
			return v
		}
		return fallback
	}

	valid := getValidityFlag()
	value := load()
	return func() T {
		if !valid.IsSet() {
			valid = getValidityFlag()
			value = load()
		}
		return value
	}
}

func asType[T any](v any) (T, bool) {
	t, ok := v.(T)
	return t, ok
}

func asInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetAsString returns a function that returns the current string value.
func GetAsString(key string, fallback string) StringOption {
	return getter(key, fallback, asType[string])
}

// GetAsStringArray returns a function that returns the current string list.
// The returned slice is shared and must not be modified.
func GetAsStringArray(key string, fallback []string) StringArrayOption {
	return getter(key, fallback, asType[[]string])
}

// GetAsInt returns a function that returns the current int value.
func GetAsInt(key string, fallback int64) IntOption {
	return getter(key, fallback, asInt)
}

// GetAsBool returns a function that returns the current bool value.
func GetAsBool(key string, fallback bool) BoolOption {
	return getter(key, fallback, asType[bool])
}

// findValue returns the active or default value of the option, or nil if
// no such option is registered.
func findValue(key string) any {
	optionsLock.RLock()
	option, ok := options[key]
	optionsLock.RUnlock()
	if !ok {
		log.Errorf("config: request for unregistered option: %s", key)
		return nil
	}
	return option.Value()
}
