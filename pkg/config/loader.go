package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}

	defaultEnvOnce sync.Once
)

// LoadEnv reads dotenv files into the process environment. Variables that are
// already set win over file values; earlier paths win over later ones.
// Missing files are reported as ErrEnvFile.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			return errors.Join(ErrEnvFile, fmt.Errorf("%s: %w", p, err))
		}
	}
	return nil
}

// Parse fills v from the environment without caching. Use it for short-lived
// commands whose flags may override the environment between calls.
func Parse[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// Load fills v from the environment once per type and returns the cached copy
// afterwards. The first call also reads ./.env when it exists.
//
//	var cfg pgstore.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	defaultEnvOnce.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load()
		}
	})

	key := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var fresh T
	if err := Parse(&fresh); err != nil {
		return err
	}
	cache[key] = fresh
	*v = fresh
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// ResetCache forgets every loaded configuration.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	clear(cache)
}
