// Package env holds the process configuration: a .env file read once at
// boot, with plain OS environment variables as fallback so containerized
// deployments and tests can override single keys without editing the file.
package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv answers a config lookup: the loaded .env map wins, then the OS
// environment, then the caller's default.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile locates and reads the .env file. The binary may start from
// the repo root or from its cmd/ directory, so a few parent levels are
// probed before giving up.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",    // from cmd/revrescue
		"../../../.env", // deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	panic("No .env file found in any of the expected locations")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
