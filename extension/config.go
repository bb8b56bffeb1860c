package extension

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/xraph/herald"
	"github.com/xraph/herald/trigger"
)

// DefaultConfigPath is read when HERALD_CONFIG is unset.
const DefaultConfigPath = "./herald.yaml"

// Config holds configuration for the Herald extension. Fields are loaded
// from a YAML file and overridden by environment variables.
type Config struct {
	// AppSecret verifies webhook signatures. Required.
	AppSecret string `yaml:"app_secret" env:"HERALD_APP_SECRET" env-required:"true"`

	// VerifyToken answers the subscription handshake. A random token is
	// generated when empty.
	VerifyToken string `yaml:"verify_token" env:"HERALD_VERIFY_TOKEN"`

	// BasePath is the URL prefix for all Herald routes.
	BasePath string `yaml:"base_path" env:"HERALD_BASE_PATH" env-default:"/herald"`

	// GraphBaseURL overrides the Instagram Graph API endpoint.
	GraphBaseURL string `yaml:"graph_base_url" env:"HERALD_GRAPH_BASE_URL"`

	// GraphCallsPerHour throttles outbound calls per account. Zero is unlimited.
	GraphCallsPerHour int `yaml:"graph_calls_per_hour" env:"HERALD_GRAPH_CALLS_PER_HOUR" env-default:"200"`

	// GeminiAPIKey enables AI-generated responses when set.
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`

	// GeminiModels are tried in order. Empty uses the built-in chain.
	GeminiModels []string `yaml:"gemini_models" env:"HERALD_GEMINI_MODELS" env-separator:","`

	DedupTTL          time.Duration `yaml:"dedup_ttl"           env:"HERALD_DEDUP_TTL"           env-default:"5m"`
	SweepInterval     time.Duration `yaml:"sweep_interval"      env:"HERALD_SWEEP_INTERVAL"      env-default:"1m"`
	DuplicateWindow   time.Duration `yaml:"duplicate_window"    env:"HERALD_DUPLICATE_WINDOW"    env-default:"5m"`
	ReleaseOnError    bool          `yaml:"release_on_error"    env:"HERALD_RELEASE_ON_ERROR"    env-default:"false"`
	MaxAttempts       int           `yaml:"max_attempts"        env:"HERALD_MAX_ATTEMPTS"        env-default:"3"`
	BaseDelay         time.Duration `yaml:"base_delay"          env:"HERALD_BASE_DELAY"          env-default:"1s"`
	RequestTimeout    time.Duration `yaml:"request_timeout"     env:"HERALD_REQUEST_TIMEOUT"     env-default:"10s"`
	MaxResponseLength int           `yaml:"max_response_length" env:"HERALD_MAX_RESPONSE_LENGTH" env-default:"800"`
	NewFollowerWindow time.Duration `yaml:"new_follower_window" env:"HERALD_NEW_FOLLOWER_WINDOW" env-default:"168h"`
	ClaimRetention    time.Duration `yaml:"claim_retention"     env:"HERALD_CLAIM_RETENTION"     env-default:"1h"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"HERALD_SHUTDOWN_TIMEOUT"    env-default:"30s"`

	// DisableRoutes disables route registration with the Forge router.
	DisableRoutes bool `yaml:"disable_routes" env:"HERALD_DISABLE_ROUTES"`

	// DisableMigrate disables store migration on Start.
	DisableMigrate bool `yaml:"disable_migrate" env:"HERALD_DISABLE_MIGRATE"`
}

// DefaultConfig returns a Config with the same defaults the env-default
// tags declare. AppSecret is left empty.
func DefaultConfig() Config {
	d := herald.DefaultConfig()
	return Config{
		BasePath:          "/herald",
		GraphCallsPerHour: 200,
		DedupTTL:          d.DedupTTL,
		SweepInterval:     d.SweepInterval,
		DuplicateWindow:   d.DuplicateWindow,
		MaxAttempts:       d.MaxAttempts,
		BaseDelay:         d.BaseDelay,
		RequestTimeout:    d.RequestTimeout,
		MaxResponseLength: d.MaxResponseLength,
		NewFollowerWindow: d.NewFollowerWindow,
		ClaimRetention:    d.ClaimRetention,
		ShutdownTimeout:   d.ShutdownTimeout,
	}
}

// LoadConfig reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path is path, else HERALD_CONFIG,
// else DefaultConfigPath. A missing default file falls back to ENV only.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	explicitPath := path != ""
	if !explicitPath {
		path = os.Getenv("HERALD_CONFIG")
		explicitPath = path != ""
	}
	if !explicitPath {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("herald config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("herald config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("herald config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("herald config: validate: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.AppSecret == "" {
		errs = append(errs, errors.New("app_secret is required"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("max_attempts must be at least 1"))
	}
	if c.DedupTTL <= 0 {
		errs = append(errs, errors.New("dedup_ttl must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.GraphCallsPerHour < 0 {
		errs = append(errs, errors.New("graph_calls_per_hour must not be negative"))
	}
	if c.MaxResponseLength <= 0 {
		errs = append(errs, errors.New("max_response_length must be positive"))
	}
	if c.ClaimRetention < trigger.BucketWidth {
		errs = append(errs, fmt.Errorf("claim_retention must be at least %s", trigger.BucketWidth))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// HeraldConfig converts the pipeline settings into a herald.Config.
func (c Config) HeraldConfig() herald.Config {
	return herald.Config{
		DedupTTL:          c.DedupTTL,
		SweepInterval:     c.SweepInterval,
		DuplicateWindow:   c.DuplicateWindow,
		ReleaseOnError:    c.ReleaseOnError,
		MaxAttempts:       c.MaxAttempts,
		BaseDelay:         c.BaseDelay,
		RequestTimeout:    c.RequestTimeout,
		MaxResponseLength: c.MaxResponseLength,
		NewFollowerWindow: c.NewFollowerWindow,
		ClaimRetention:    c.ClaimRetention,
		ShutdownTimeout:   c.ShutdownTimeout,
	}
}
