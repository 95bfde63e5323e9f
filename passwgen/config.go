package passwgen

import (
	"sync"
	"time"

	"github.com/safing/pwgen/config"
)

// Config keys.
const (
	CfgOptionMaxListBytesKey      = "passwgen/max_list_bytes"
	CfgOptionScriptPollKey        = "passwgen/script_poll_seconds"
	CfgOptionScriptMaxTimeoutsKey = "passwgen/script_max_timeouts"
	CfgOptionAmbiguousKey         = "passwgen/ambiguous_chars"
	CfgOptionSymbolsKey           = "passwgen/symbols"
	CfgOptionCommonPasswordsKey   = "passwgen/common_passwords"

	defaultScriptPollSeconds = 1
	defaultScriptMaxTimeouts = 30
)

var (
	registerOnce sync.Once
	registerErr  error

	cfgOptionMaxListBytes      config.IntOption
	cfgOptionScriptPoll        config.IntOption
	cfgOptionScriptMaxTimeouts config.IntOption
	cfgOptionAmbiguous         config.StringOption
	cfgOptionSymbols           config.StringOption
	cfgOptionCommonPasswords   config.StringArrayOption
)

// RegisterConfig registers the config options of the generator. It may be
// called multiple times.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func registerConfig() error {
	err := config.Register(&config.Option{
		Name:            "Password List Memory Limit",
		Key:             CfgOptionMaxListBytesKey,
		Description:     "Maximum memory of a password list in bytes. Halved if duplicates are excluded.",
		OptType:         config.OptTypeInt,
		ExpertiseLevel:  config.ExpertiseLevelExpert,
		DefaultValue:    int64(DefaultMaxListBytes),
		ValidationRegex: "^[1-9][0-9]{3,11}$",
	})
	if err != nil {
		return err
	}
	cfgOptionMaxListBytes = config.GetAsInt(CfgOptionMaxListBytesKey, DefaultMaxListBytes)

	err = config.Register(&config.Option{
		Name:            "Script Poll Interval",
		Key:             CfgOptionScriptPollKey,
		Description:     "Interval in seconds at which a script result is awaited.",
		OptType:         config.OptTypeInt,
		ExpertiseLevel:  config.ExpertiseLevelDeveloper,
		DefaultValue:    int64(defaultScriptPollSeconds),
		ValidationRegex: "^[1-9][0-9]{0,2}$",
	})
	if err != nil {
		return err
	}
	cfgOptionScriptPoll = config.GetAsInt(CfgOptionScriptPollKey, defaultScriptPollSeconds)

	err = config.Register(&config.Option{
		Name:            "Script Timeouts",
		Key:             CfgOptionScriptMaxTimeoutsKey,
		Description:     "Number of poll intervals after which an unresponsive script is terminated. 0 waits forever.",
		OptType:         config.OptTypeInt,
		ExpertiseLevel:  config.ExpertiseLevelExpert,
		DefaultValue:    int64(defaultScriptMaxTimeouts),
		ValidationRegex: "^[0-9]{1,4}$",
	})
	if err != nil {
		return err
	}
	cfgOptionScriptMaxTimeouts = config.GetAsInt(CfgOptionScriptMaxTimeoutsKey, defaultScriptMaxTimeouts)

	err = config.Register(&config.Option{
		Name:           "Ambiguous Characters",
		Key:            CfgOptionAmbiguousKey,
		Description:    "Characters removed from <easytoread> and by the E format specifier. Empty uses the built-in list.",
		OptType:        config.OptTypeString,
		ExpertiseLevel: config.ExpertiseLevelUser,
		DefaultValue:   "",
	})
	if err != nil {
		return err
	}
	cfgOptionAmbiguous = config.GetAsString(CfgOptionAmbiguousKey, "")

	err = config.Register(&config.Option{
		Name:           "Special Symbols",
		Key:            CfgOptionSymbolsKey,
		Description:    "Characters of <symbols> and the s format specifier. Empty uses the built-in list.",
		OptType:        config.OptTypeString,
		ExpertiseLevel: config.ExpertiseLevelUser,
		DefaultValue:   "",
	})
	if err != nil {
		return err
	}
	cfgOptionSymbols = config.GetAsString(CfgOptionSymbolsKey, "")

	err = config.Register(&config.Option{
		Name:           "Common Passwords",
		Key:            CfgOptionCommonPasswordsKey,
		Description:    "Paths of lists of common passwords, merged into one. Matching passwords are rated accordingly.",
		OptType:        config.OptTypeStringArray,
		ExpertiseLevel: config.ExpertiseLevelUser,
		DefaultValue:   []string{},
	})
	if err != nil {
		return err
	}
	cfgOptionCommonPasswords = config.GetAsStringArray(CfgOptionCommonPasswordsKey, nil)

	return nil
}

// OptionsFromConfig returns generator options from the registered config.
func OptionsFromConfig() (Options, error) {
	if err := RegisterConfig(); err != nil {
		return Options{}, err
	}
	opts := Options{
		MaxListBytes:      cfgOptionMaxListBytes(),
		ScriptPoll:        time.Duration(cfgOptionScriptPoll()) * time.Second,
		ScriptMaxTimeouts: int(cfgOptionScriptMaxTimeouts()),
	}
	opts.Charset.Ambiguous = cfgOptionAmbiguous()
	opts.Charset.Symbols = cfgOptionSymbols()
	return opts, nil
}

// CommonPasswordsFromConfig returns the configured common password list
// paths.
func CommonPasswordsFromConfig() ([]string, error) {
	if err := RegisterConfig(); err != nil {
		return nil, err
	}
	return cfgOptionCommonPasswords(), nil
}
