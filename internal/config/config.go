package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"amsprobe/internal/errors"
)

// Config represents the process configuration shared by every command
type Config struct {
	LogLevel string
	Run      RunConfig   `validate:"required"`
	Agent    AgentConfig `validate:"required"`
	Ledger   LedgerConfig
}

// RunConfig holds checker run settings
type RunConfig struct {
	WorkDir   string `validate:"required"`
	Processes int    `validate:"min=1"`
}

// AgentConfig holds remote simulation agent settings
type AgentConfig struct {
	Addr    string
	Root    string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

// LedgerConfig holds the optional run history database
type LedgerConfig struct {
	DSN string
}

// Load reads configuration from environment variables, seeded from a .env
// file when one exists, and validates it
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
		Run: RunConfig{
			WorkDir:   getEnvOrDefault("AMSPROBE_WORKDIR", ".amsprobe"),
			Processes: getEnvIntOrDefault("AMSPROBE_PROCESSES", runtime.NumCPU()),
		},
		Agent: AgentConfig{
			Addr:    getEnvOrDefault("AMSPROBE_AGENT_ADDR", ""),
			Root:    getEnvOrDefault("AMSPROBE_AGENT_ROOT", "/tmp/amsprobe-agent"),
			Timeout: getEnvDurationOrDefault("AMSPROBE_AGENT_TIMEOUT", 30*time.Minute),
		},
		Ledger: LedgerConfig{
			DSN: getEnvOrDefault("AMSPROBE_LEDGER_DSN", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

var validate = newValidator()

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("engrtime", func(fl validator.FieldLevel) bool {
		_, err := ParseEngrTime(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("timescale", func(fl validator.FieldLevel) bool {
		return isTimescale(fl.Field().String())
	}))
	return v
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
