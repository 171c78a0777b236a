package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads env files in priority order: .env.<APP_ENV>.local,
// .env.local, then .env. godotenv never overwrites already-set vars, so
// the process environment always wins and earlier files shadow later
// ones. Returns the files actually found.
func LoadDotEnv() []string {
	candidates := []string{".env.local", ".env"}
	if env := os.Getenv("APP_ENV"); env != "" {
		candidates = append([]string{".env." + env + ".local"}, candidates...)
	}

	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
