package config

import (
	"errors"
	"os"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvOnce sync.Once

// Load parses environment variables into the provided struct based on its
// `env` tags. The default .env file is loaded once per process if it exists;
// a missing .env file is not an error.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	defaultEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingFailed, err)
	}
	return nil
}

// LoadEnv loads environment variables from a specific file before parsing.
// Unlike the default .env handling, a missing file here is an error because
// the caller asked for it explicitly.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Join(ErrEnvFileNotFound, err)
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Join(ErrParsingFailed, err)
	}
	return nil
}
