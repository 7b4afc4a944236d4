package envcheck

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Lookup returns the value of an environment key and whether it is set.
type Lookup func(key string) (string, bool)

// OSLookup reads the process environment.
func OSLookup() Lookup {
	return os.LookupEnv
}

// MapLookup serves values from m.
func MapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Chain consults each lookup in order and returns the first hit.
func Chain(lookups ...Lookup) Lookup {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// LoadDotEnv loads .env files into the process environment without overriding
// variables that are already set. With no paths it loads ./.env and ignores
// a missing file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ReadDotEnv parses .env files without modifying the process environment.
// Later files override earlier ones.
func ReadDotEnv(paths ...string) (Lookup, error) {
	values, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return MapLookup(values), nil
}
