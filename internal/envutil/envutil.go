package envutil

import "os"

// Prefix is prepended to keys that are not already prefixed.
const Prefix = "OAUTHREG_"

// Get retrieves an environment variable with automatic OAUTHREG_ prefix fallback.
// It checks the exact key first, then the prefixed key, then returns fallback.
func Get(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	if len(key) < len(Prefix) || key[:len(Prefix)] != Prefix {
		if value, exists := os.LookupEnv(Prefix + key); exists {
			return value
		}
	}

	return fallback
}
