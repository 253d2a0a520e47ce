// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all service configuration.
// Environment determines whether backend secrets may load from Secret Manager.
type Config struct {
	// Server settings
	Port        string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Cart backend
	APIBaseURL       string        `envconfig:"API_BASE_URL" default:"https://localhost:7182/api" validate:"required,url"`
	AuthToken        string        `envconfig:"AUTH_TOKEN"` // optional token to sign in with at startup
	DeliveryMethodID int           `envconfig:"DELIVERY_METHOD_ID" default:"1" validate:"min=1"`
	ShippingPrice    float64       `envconfig:"SHIPPING_PRICE" default:"60.0" validate:"min=0"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	ChromeTLS        bool          `envconfig:"CHROME_TLS" default:"false"`

	// Local persistence
	StoreBackend   string `envconfig:"STORE_BACKEND" default:"sqlite" validate:"oneof=sqlite redis memory"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"cartsync.db" validate:"required_if=StoreBackend sqlite"`
	RedisURL       string `envconfig:"REDIS_URL" validate:"required_if=StoreBackend redis"`
	StoreNamespace string `envconfig:"STORE_NAMESPACE" default:"default" validate:"required"`

	// GCP settings (production secrets)
	GCPProject string `envconfig:"GCP_PROJECT"`
	SecretName string `envconfig:"SECRET_NAME"`
}

// BackendSecret is the JSON payload stored in Secret Manager.
type BackendSecret struct {
	APIBaseURL string `json:"api_base_url"`
	AuthToken  string `json:"auth_token"`
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// accessSecret fetches a secret payload. Replaced in tests.
var accessSecret = accessSecretManager

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars, then Secret Manager overlay in production.
// Validates all fields and returns an error describing the first problem.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.IsProduction() && cfg.SecretName != "" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required when SECRET_NAME is set in production")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading backend secret: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig matches the JSON structure of CONFIG_FILE.
type fileConfig struct {
	Port             string   `json:"port"`
	Environment      string   `json:"environment"`
	LogLevel         string   `json:"log_level"`
	APIBaseURL       string   `json:"api_base_url"`
	AuthToken        string   `json:"auth_token"`
	DeliveryMethodID *int     `json:"delivery_method_id"`
	ShippingPrice    *float64 `json:"shipping_price"`
	HTTPTimeout      string   `json:"http_timeout"`
	ChromeTLS        bool     `json:"chrome_tls"`
	Store            struct {
		Backend    string `json:"backend"`
		SQLitePath string `json:"sqlite_path"`
		RedisURL   string `json:"redis_url"`
		Namespace  string `json:"namespace"`
	} `json:"store"`
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:             withDefault(fc.Port, "8080"),
		Environment:      withDefault(fc.Environment, EnvDevelopment),
		LogLevel:         withDefault(fc.LogLevel, "info"),
		APIBaseURL:       withDefault(fc.APIBaseURL, "https://localhost:7182/api"),
		AuthToken:        fc.AuthToken,
		DeliveryMethodID: 1,
		ShippingPrice:    60.0,
		HTTPTimeout:      15 * time.Second,
		ChromeTLS:        fc.ChromeTLS,
		StoreBackend:     withDefault(fc.Store.Backend, "sqlite"),
		SQLitePath:       withDefault(fc.Store.SQLitePath, "cartsync.db"),
		RedisURL:         fc.Store.RedisURL,
		StoreNamespace:   withDefault(fc.Store.Namespace, "default"),
	}
	if fc.DeliveryMethodID != nil {
		cfg.DeliveryMethodID = *fc.DeliveryMethodID
	}
	if fc.ShippingPrice != nil {
		cfg.ShippingPrice = *fc.ShippingPrice
	}
	if fc.HTTPTimeout != "" {
		d, err := time.ParseDuration(fc.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing http_timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager overlays backend settings from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretName)

	data, err := accessSecret(ctx, secretName)
	if err != nil {
		return err
	}

	var secret BackendSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	if secret.APIBaseURL != "" {
		c.APIBaseURL = secret.APIBaseURL
	}
	if secret.AuthToken != "" {
		c.AuthToken = secret.AuthToken
	}
	return nil
}

func accessSecretManager(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("accessing secret %s: %w", name, err)
	}
	return result.Payload.Data, nil
}

// validate checks field constraints declared in struct tags.
func (c *Config) validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config %s: failed '%s' check", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("validating config: %w", err)
}
