// Package config loads server settings from the environment and client
// settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/saferound/internal/models"
)

// Server is the configuration of cmd/server.
type Server struct {
	Port             int
	DBPath           string
	JWTSecret        string
	NotifyRatePerMin int
	LogLevel         string
}

// LoadServer reads the server configuration. A .env file in the working
// directory is loaded first when present; real environment variables win.
func LoadServer() (Server, error) {
	_ = godotenv.Load() // ok if missing

	cfg := Server{
		DBPath:    getEnv("DB_PATH", "./data/saferound.db"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil || port <= 0 || port > 65535 {
		return Server{}, fmt.Errorf("invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	rate, err := strconv.Atoi(getEnv("NOTIFY_RATE_PER_MIN", "6"))
	if err != nil {
		return Server{}, fmt.Errorf("invalid NOTIFY_RATE_PER_MIN: %w", err)
	}
	cfg.NotifyRatePerMin = rate

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Client is the configuration of the saferound CLI.
type Client struct {
	ServerURL    string        `yaml:"server_url"`
	UserID       string        `yaml:"user_id"`
	WeightKg     float64       `yaml:"weight_kg"`
	Sex          string        `yaml:"sex"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultClient is used for any field the file leaves empty.
var DefaultClient = Client{
	ServerURL:    "http://localhost:8000",
	Timeout:      10 * time.Second,
	PollInterval: 15 * time.Second,
}

// ErrNoUser means the client configuration names no user.
var ErrNoUser = errors.New("user_id is required")

// LoadClient reads path. A missing file yields the defaults.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Client{}, fmt.Errorf("read config: %w", err)
	}
	return ParseClient(raw)
}

// ParseClient decodes a YAML client configuration over the defaults.
func ParseClient(raw []byte) (Client, error) {
	cfg := DefaultClient
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Client{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultClient.ServerURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClient.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultClient.PollInterval
	}
	return cfg, nil
}

// Biometrics returns the configured weight and sex. It is not an error for
// them to be missing; estimates will ask for them.
func (c Client) Biometrics() models.UserBiometrics {
	sex, err := models.ParseSex(c.Sex)
	if err != nil {
		return models.UserBiometrics{WeightKg: c.WeightKg}
	}
	return models.UserBiometrics{WeightKg: c.WeightKg, Sex: sex}
}

// Validate checks the fields every command needs.
func (c Client) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrNoUser
	}
	return nil
}
