package config

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var (
	optionsLock sync.RWMutex
	options     = make(map[string]*Option)
)

// Register registers a new configuration option.
func Register(option *Option) error {
	if option.Name == "" {
		return newInvalidOptionError("name is mandatory", nil)
	}
	if option.Key == "" {
		return newInvalidOptionError("key is mandatory", nil)
	}
	if option.Description == "" {
		return newInvalidOptionError("description is mandatory", nil)
	}
	if option.ExpertiseLevel == 0 {
		return newInvalidOptionError("expertise level is mandatory", nil)
	}
	if option.OptType == 0 {
		return newInvalidOptionError("type is mandatory", nil)
	}

	if option.ValidationRegex != "" {
		var err error
		option.compiledRegex, err = regexp.Compile(option.ValidationRegex)
		if err != nil {
			return newInvalidOptionError(fmt.Sprintf("could not compile validation regex of %s", option.Key), err)
		}
	}

	if option.DefaultValue != nil {
		if _, err := validateValue(option, option.DefaultValue); err != nil {
			return newInvalidOptionError(fmt.Sprintf("default value of %s is invalid", option.Key), err)
		}
	}

	optionsLock.Lock()
	defer optionsLock.Unlock()

	if _, exists := options[option.Key]; exists {
		return newInvalidOptionError(fmt.Sprintf("%s is already registered", option.Key), ErrAlreadyRegistered)
	}
	options[option.Key] = option
	signalChanges()

	return nil
}

// GetOption returns the option with the given key.
func GetOption(key string) (*Option, error) {
	optionsLock.RLock()
	defer optionsLock.RUnlock()

	opt, ok := options[key]
	if !ok {
		return nil, ErrUnknownOption
	}
	return opt, nil
}

// Options returns all registered options, sorted by key.
func Options() []*Option {
	optionsLock.RLock()
	defer optionsLock.RUnlock()

	all := make(sortableOptions, 0, len(options))
	for _, opt := range options {
		all = append(all, opt)
	}
	sort.Sort(all)
	return all
}

// unregister is used by tests.
func unregister(key string) {
	optionsLock.Lock()
	defer optionsLock.Unlock()

	delete(options, key)
	signalChanges()
}
