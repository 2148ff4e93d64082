package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ObjectStoreConfig carries the default endpoint and credentials for remote
// locations; per-request credentials override the key pair.
type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UseSSL          bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("METALENS_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid METALENS_PROFILE: %q", profile)
	}

	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: serviceName},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "s3.amazonaws.com",
			UseSSL:   true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelInfo,
			LogJSON:  profile == ProfileProd,
		},
	}

	if raw, ok := lookup("METALENS_HTTP_ADDR"); ok {
		cfg.HTTP.Address = strings.TrimSpace(raw)
	}
	var err error
	if cfg.HTTP.ReadTimeout, err = durationVar(lookup, "METALENS_HTTP_READ_TIMEOUT", cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.WriteTimeout, err = durationVar(lookup, "METALENS_HTTP_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.IdleTimeout, err = durationVar(lookup, "METALENS_HTTP_IDLE_TIMEOUT", cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}

	if raw, ok := lookup("METALENS_S3_ENDPOINT"); ok {
		cfg.ObjectStore.Endpoint = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("METALENS_S3_REGION"); ok {
		cfg.ObjectStore.Region = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("METALENS_S3_ACCESS_KEY_ID"); ok {
		cfg.ObjectStore.AccessKeyID = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("METALENS_S3_SECRET_ACCESS_KEY"); ok {
		cfg.ObjectStore.SecretAccessKey = strings.TrimSpace(raw)
	}
	if raw, ok := lookup("METALENS_S3_SESSION_TOKEN"); ok {
		cfg.ObjectStore.SessionToken = strings.TrimSpace(raw)
	}
	if cfg.ObjectStore.UseSSL, err = boolVar(lookup, "METALENS_S3_USE_SSL", cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}

	if raw, ok := lookup("METALENS_LOG_LEVEL"); ok {
		level, err := parseLogLevel(raw)
		if err != nil {
			return Config{}, err
		}
		cfg.Observability.LogLevel = level
	}
	if cfg.Observability.LogJSON, err = boolVar(lookup, "METALENS_LOG_JSON", cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func durationVar(lookup LookupFunc, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func boolVar(lookup LookupFunc, key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid METALENS_LOG_LEVEL: %q", raw)
	}
}
