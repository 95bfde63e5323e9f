package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings holds process level settings read from the environment.
type Settings struct {
	DataDir         string            `env:"PWGEN_DATA_DIR"`
	LogLevel        string            `env:"PWGEN_LOG_LEVEL" envDefault:"info"`
	PkgLogLevels    string            `env:"PWGEN_PKG_LOG_LEVELS"`
	Cipher          string            `env:"PWGEN_CIPHER"`
	CommonPasswords []string          `env:"PWGEN_COMMON_PASSWORDS" envSeparator:";"`
	Options         map[string]string `env:"PWGEN_OPTIONS" envSeparator:"," envKeyValSeparator:"="`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvFrom loads configuration from the given environment instead of
// the process environment.
func ParseEnvFrom(target any, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Apply sets all options given in the settings.
func (s *Settings) Apply() error {
	for key, value := range s.Options {
		if err := SetConfigOption(key, value); err != nil {
			return fmt.Errorf("failed to set %s from environment: %w", key, err)
		}
	}
	return nil
}
