package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort       string        `validate:"required,numeric"`
	Environment      string        `validate:"required,oneof=development staging production test"`
	BackendURL       string        `validate:"required,url"`
	CredentialPath   string        `validate:"required"`
	PollInterval     time.Duration `validate:"gt=0"`
	RequestTimeout   time.Duration `validate:"gt=0"`
	RollbackMarkRead bool
	LoginEmail       string `validate:"omitempty,email"`
	LoginPassword    string
}

// Load reads the process environment, after merging any .env files, and
// validates the result. Extra env files are loaded before the default .env.
func Load(envFiles ...string) (*Config, error) {
	godotenv.Load(append(envFiles, ".env")...)

	config := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		BackendURL:       getEnv("BACKEND_URL", "http://localhost:8000"),
		CredentialPath:   getEnv("CREDENTIAL_PATH", ".jobmarket/credential.yaml"),
		PollInterval:     getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		RollbackMarkRead: getEnvAsBool("ROLLBACK_MARK_READ", true),
		LoginEmail:       getEnv("LOGIN_EMAIL", ""),
		LoginPassword:    getEnv("LOGIN_PASSWORD", ""),
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	if seconds := getEnvAsInt64(key, -1); seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}
