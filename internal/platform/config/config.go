// Package config builds runtime configuration from struct-tag defaults, an
// optional TOML file, and environment variables, in that order. Environment
// wins so deployments can override a checked-in config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
)

// Config is the full runtime configuration for the biometric service.
type Config struct {
	Addr          string `default:":8080" toml:"addr"`
	AdminToken    string `default:"dev-admin-token" toml:"admin_token"`
	JWTSigningKey string `default:"dev-secret-key-change-in-production" toml:"jwt_signing_key"`
	LogFile       string `toml:"log_file"`

	Scanner  Scanner  `toml:"scanner"`
	Matching Matching `toml:"matching"`
	Store    Store    `toml:"store"`
	Registry Registry `toml:"registry"`
	Audit    Audit    `toml:"audit"`
	Cleanup  Cleanup  `toml:"cleanup"`
}

// Scanner holds the fingerprint sensor connection settings.
type Scanner struct {
	Port                  string `default:"/dev/ttyUSB0" toml:"port"`
	Baud                  int    `default:"57600" toml:"baud"`
	CaptureTimeoutSeconds int    `default:"30" toml:"capture_timeout_seconds"`
	// DemoSeed seeds the synthetic sample generator so demo-mode captures
	// are reproducible. 0 means derive from wall clock.
	DemoSeed int64 `toml:"demo_seed"`
}

func (s Scanner) CaptureTimeout() time.Duration {
	return time.Duration(s.CaptureTimeoutSeconds) * time.Second
}

// Matching holds the placeholder scoring thresholds. These are tunable
// heuristics, not a validated biometric algorithm.
type Matching struct {
	ProximityTolerance   int32   `default:"10" toml:"proximity_tolerance"`
	ConsistencyThreshold float64 `default:"0.7" toml:"consistency_threshold"`
	AcceptanceThreshold  float64 `default:"80" toml:"acceptance_threshold"`
	FaceTolerance        float64 `default:"0.6" toml:"face_tolerance"`
}

// Store selects the template persistence backend.
type Store struct {
	// Backend is one of "memory", "file", "postgres", "redis".
	Backend     string `default:"file" toml:"backend"`
	FilePath    string `default:"data/templates.cbor" toml:"file_path"`
	PostgresDSN string `toml:"postgres_dsn"`
	RedisURL    string `toml:"redis_url"`
}

// Registry configures the identity registry adapter. SeedFile points to a
// newline-separated list of known user IDs; when empty, every user ID is
// accepted and orphan cleanup is unavailable.
type Registry struct {
	SeedFile string `toml:"seed_file"`
}

// Audit configures the optional Kafka audit sink. Empty brokers means events
// only reach the local audit store.
type Audit struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `default:"umid.biometric.audit" toml:"kafka_topic"`
}

// Cleanup configures the scheduled orphan-template sweep. 0 disables it.
type Cleanup struct {
	IntervalHours int `toml:"interval_hours"`
}

func (c Cleanup) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// Load assembles the configuration. A missing .env file is not an error; the
// UMID_CONFIG_FILE TOML overlay is applied when set, then environment
// variables override individual fields.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	defaults.SetDefaults(&cfg)

	if path := os.Getenv("UMID_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Addr, "UMID_ADDR")
	setString(&cfg.AdminToken, "UMID_ADMIN_TOKEN")
	setString(&cfg.JWTSigningKey, "UMID_JWT_SIGNING_KEY")
	setString(&cfg.LogFile, "UMID_LOG_FILE")

	setString(&cfg.Scanner.Port, "UMID_SCANNER_PORT")
	setInt(&cfg.Scanner.Baud, "UMID_SCANNER_BAUD")
	setInt(&cfg.Scanner.CaptureTimeoutSeconds, "UMID_CAPTURE_TIMEOUT_SECONDS")
	setInt64(&cfg.Scanner.DemoSeed, "UMID_DEMO_SEED")

	setInt32(&cfg.Matching.ProximityTolerance, "UMID_PROXIMITY_TOLERANCE")
	setFloat(&cfg.Matching.ConsistencyThreshold, "UMID_CONSISTENCY_THRESHOLD")
	setFloat(&cfg.Matching.AcceptanceThreshold, "UMID_ACCEPTANCE_THRESHOLD")
	setFloat(&cfg.Matching.FaceTolerance, "UMID_FACE_TOLERANCE")

	setString(&cfg.Store.Backend, "UMID_STORE_BACKEND")
	setString(&cfg.Store.FilePath, "UMID_STORE_FILE_PATH")
	setString(&cfg.Store.PostgresDSN, "UMID_POSTGRES_DSN")
	setString(&cfg.Store.RedisURL, "UMID_REDIS_URL")

	setString(&cfg.Registry.SeedFile, "UMID_REGISTRY_SEED_FILE")

	if v := os.Getenv("UMID_KAFKA_BROKERS"); v != "" {
		cfg.Audit.KafkaBrokers = strings.Split(v, ",")
	}
	setString(&cfg.Audit.KafkaTopic, "UMID_AUDIT_TOPIC")

	setInt(&cfg.Cleanup.IntervalHours, "UMID_CLEANUP_INTERVAL_HOURS")
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "memory", "file":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store backend postgres requires UMID_POSTGRES_DSN")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store backend redis requires UMID_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Scanner.CaptureTimeoutSeconds <= 0 {
		return fmt.Errorf("capture timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
