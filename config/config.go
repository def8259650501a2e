package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DevMode  bool   `yaml:"dev_mode"`
	HostPort string `yaml:"host_port"`

	// Backing services
	DynamoDBEndpoint  string `yaml:"dynamodb_endpoint"`
	DynamoDBTable     string `yaml:"dynamodb_table"`
	SQSEndpoint       string `yaml:"sqs_endpoint"`
	DeleteLayersQueue string `yaml:"delete_layers_queue"`
	RedisEndpoint     string `yaml:"redis_endpoint"`

	// HTTP
	AllowedOrigin string `yaml:"allowed_origin"`
	AssetBaseURL  string `yaml:"asset_base_url"`
	UploadDir     string `yaml:"upload_dir"`

	// Auth. JWTSecret is base64.
	JWTSecret          string `yaml:"jwt_secret"`
	OAuthRedirectURL   string `yaml:"oauth_redirect_url"`
	GithubClientID     string `yaml:"github_client_id"`
	GithubClientSecret string `yaml:"github_client_secret"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`

	// Workers
	DebounceMS   int `yaml:"debounce_ms"`
	TouchFlushMS int `yaml:"touch_flush_ms"`

	// Limits
	MaxUploadMB        int      `yaml:"max_upload_mb"`
	AllowedMimeTypes   []string `yaml:"allowed_mime_types"`
	MaxLayersPerDesign int      `yaml:"max_layers_per_design"`

	// New layer placement
	DefaultLayerX      float64 `yaml:"default_layer_x"`
	DefaultLayerY      float64 `yaml:"default_layer_y"`
	DefaultLayerWidth  float64 `yaml:"default_layer_width"`
	DefaultLayerHeight float64 `yaml:"default_layer_height"`
}

// DefaultConfig returns a Config struct with default values
func DefaultConfig() *Config {
	return &Config{
		HostPort:           "8080",
		DynamoDBTable:      "Layerdeck",
		DeleteLayersQueue:  "DeleteDesignLayersQueue",
		AssetBaseURL:       "http://localhost:8080",
		UploadDir:          "uploads",
		DebounceMS:         500,
		TouchFlushMS:       60000,
		MaxUploadMB:        10,
		AllowedMimeTypes:   []string{"image/png", "image/jpeg", "image/jpg", "image/webp"},
		MaxLayersPerDesign: 500,
		DefaultLayerX:      50,
		DefaultLayerY:      50,
		DefaultLayerWidth:  200,
		DefaultLayerHeight: 200,
	}
}

// Load reads configuration from the specified file path, then applies
// environment overrides. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Keep essential values when the file blanked them
	defaults := DefaultConfig()
	if cfg.HostPort == "" {
		cfg.HostPort = defaults.HostPort
	}
	if cfg.DynamoDBTable == "" {
		cfg.DynamoDBTable = defaults.DynamoDBTable
	}
	if cfg.DeleteLayersQueue == "" {
		cfg.DeleteLayersQueue = defaults.DeleteLayersQueue
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = defaults.AllowedMimeTypes
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("DEV_MODE"); ok {
		c.DevMode = v == "true"
	}
	for name, field := range map[string]*string{
		"HOST_PORT":            &c.HostPort,
		"DYNAMODB_ENDPOINT":    &c.DynamoDBEndpoint,
		"SQS_ENDPOINT":         &c.SQSEndpoint,
		"REDIS_ENDPOINT":       &c.RedisEndpoint,
		"JWT_SECRET":           &c.JWTSecret,
		"ALLOWED_ORIGIN":       &c.AllowedOrigin,
		"ASSET_BASE_URL":       &c.AssetBaseURL,
		"UPLOAD_DIR":           &c.UploadDir,
		"OAUTH_REDIRECT_URL":   &c.OAuthRedirectURL,
		"GITHUB_CLIENT_ID":     &c.GithubClientID,
		"GITHUB_CLIENT_SECRET": &c.GithubClientSecret,
		"GOOGLE_CLIENT_ID":     &c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": &c.GoogleClientSecret,
	} {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}
	if v, ok := os.LookupEnv("DEBOUNCE_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEBOUNCE_MS: %w", err)
		}
		c.DebounceMS = ms
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DebounceMS <= 0 {
		return errors.New("debounce_ms must be positive")
	}
	if c.TouchFlushMS <= 0 {
		return errors.New("touch_flush_ms must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("max_upload_mb must be positive")
	}
	if c.DefaultLayerWidth <= 0 || c.DefaultLayerHeight <= 0 {
		return errors.New("default layer size must be positive")
	}
	return nil
}

// JWTSecretBytes decodes the base64 JWT secret.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	secret, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 jwt secret: %w", err)
	}
	return secret, nil
}
