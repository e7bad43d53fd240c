package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort         = 9180
	DefaultSnapshotInterval = 5 * time.Second
	DefaultNATSSubject      = "chia.canary.events"
	DefaultBotTokenEnv      = "DISCORD_BOT_TOKEN"
	DefaultAPIKeyHeader     = "x-api-key"
)

// Config is the full chia-canary configuration tree.
type Config struct {
	// MachineName labels notifications. Defaults to the hostname.
	MachineName string `yaml:"machine_name"`

	// LogRoot is scanned for .<chain>/mainnet/log/debug.log. Defaults to
	// the user's home directory.
	LogRoot string `yaml:"log_root"`

	// ErrorLogDenylist is appended to the built-in error denylist.
	// It is the only setting applied on hot reload.
	ErrorLogDenylist []string `yaml:"error_log_denylist"`

	// CoinDenylist holds chain names that are never watched.
	CoinDenylist []string `yaml:"coin_denylist"`

	Detectors DetectorsConfig `yaml:"detectors"`
	Discord   DiscordConfig   `yaml:"discord"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
	NATS      NATSConfig      `yaml:"nats"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
}

// DetectorsConfig holds the detector tunables.
type DetectorsConfig struct {
	RepeatedFailureThreshold int           `yaml:"repeated_failure_threshold"`
	RepeatedFailureWindow    time.Duration `yaml:"repeated_failure_window"`
	ScanWindow               int           `yaml:"scan_window"`
	ScanThreshold            time.Duration `yaml:"scan_threshold"`
	HeartbeatTimeout         time.Duration `yaml:"heartbeat_timeout"`
	HeartbeatStaleAfter      time.Duration `yaml:"heartbeat_stale_after"`
	HeartbeatHistory         int           `yaml:"heartbeat_history"`
}

// DiscordConfig configures direct-message notifications.
type DiscordConfig struct {
	// BotToken is a literal token. BotTokenEnv takes precedence when set
	// and the variable is non-empty.
	BotToken    string `yaml:"bot_token"`
	BotTokenEnv string `yaml:"bot_token_env"`

	// NotificationUserID is the Discord user that receives the DMs.
	NotificationUserID string `yaml:"notification_user_id"`
}

// Token returns the bot token, preferring the environment.
func (d DiscordConfig) Token() string {
	if d.BotTokenEnv != "" {
		if v := os.Getenv(d.BotTokenEnv); v != "" {
			return v
		}
	}
	return d.BotToken
}

// Enabled reports whether both a token and a user id are available.
func (d DiscordConfig) Enabled() bool {
	return d.Token() != "" && d.NotificationUserID != ""
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// NATSConfig configures the event bus sink. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// HTTPConfig configures the REST API, WebSocket hub and /metrics listener.
// Port 0 disables all three.
type HTTPConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// GRPCConfig configures the gRPC health service. Port 0 disables it.
type GRPCConfig struct {
	Port int        `yaml:"port"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures API-key authentication of gRPC clients.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the metadata key carrying the API key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Machine returns MachineName or the hostname when it is unset.
func (c *Config) Machine() string {
	if c.MachineName != "" {
		return c.MachineName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// Root returns LogRoot or the user's home directory when it is unset.
func (c *Config) Root() (string, error) {
	if c.LogRoot != "" {
		return c.LogRoot, nil
	}
	return logfile.DefaultRoot()
}

// Settings converts the detector section into detector.Settings.
func (c *Config) Settings() detector.Settings {
	d := c.Detectors
	return detector.Settings{
		ErrorDenylist:            append([]string(nil), c.ErrorLogDenylist...),
		RepeatedFailureThreshold: d.RepeatedFailureThreshold,
		RepeatedFailureWindow:    d.RepeatedFailureWindow,
		ScanWindow:               d.ScanWindow,
		ScanThreshold:            d.ScanThreshold,
		HeartbeatTimeout:         d.HeartbeatTimeout,
		HeartbeatStaleAfter:      d.HeartbeatStaleAfter,
		HeartbeatHistory:         d.HeartbeatHistory,
	}.WithDefaults()
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults. A missing file yields an
// error matching fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LoadOrCreate loads path, writing the default config there first when the
// file does not exist yet.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err := Save(path, Defaults()); err != nil {
		return nil, err
	}
	slog.Info("config: wrote default config", "path", path)
	return Load(path)
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal yaml: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create dir: %w", err)
		}
	}
	// the file may hold a bot token
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// LoadEnv loads the .env file next to the config file into the process
// environment. Variables already set are kept. A missing .env is not an error.
func LoadEnv(configPath string) error {
	p := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", p, err)
	}
	slog.Debug("config: loaded env file", "path", p)
	return nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		ErrorLogDenylist: []string{},
		CoinDenylist:     []string{},
		Detectors: DetectorsConfig{
			RepeatedFailureThreshold: detector.DefaultRepeatedFailureThreshold,
			RepeatedFailureWindow:    detector.DefaultRepeatedFailureWindow,
			ScanWindow:               detector.DefaultScanWindow,
			ScanThreshold:            detector.DefaultScanThreshold,
			HeartbeatTimeout:         detector.DefaultHeartbeatTimeout,
			HeartbeatStaleAfter:      detector.DefaultHeartbeatStaleAfter,
			HeartbeatHistory:         detector.DefaultHeartbeatHistory,
		},
		Discord: DiscordConfig{
			BotTokenEnv: DefaultBotTokenEnv,
		},
		Webhooks: []WebhookConfig{},
		NATS: NATSConfig{
			Subject: DefaultNATSSubject,
		},
		HTTP: HTTPConfig{
			Port:             DefaultHTTPPort,
			SnapshotInterval: DefaultSnapshotInterval,
		},
		GRPC: GRPCConfig{
			Auth: AuthConfig{Mode: "none", Header: DefaultAPIKeyHeader},
		},
	}
}

// validate checks structural constraints.
func validate(cfg *Config) error {
	d := cfg.Detectors
	if d.RepeatedFailureThreshold < 0 || d.ScanWindow < 0 || d.HeartbeatHistory < 0 {
		return fmt.Errorf("detectors: counts must not be negative")
	}
	if d.RepeatedFailureWindow < 0 || d.ScanThreshold < 0 || d.HeartbeatTimeout < 0 || d.HeartbeatStaleAfter < 0 {
		return fmt.Errorf("detectors: durations must not be negative")
	}
	for i, w := range cfg.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("webhooks[%d]: unknown type %q", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("webhooks[%d]: url_env is required", i)
		}
	}
	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	if err := validPort("http.port", cfg.HTTP.Port); err != nil {
		return err
	}
	if cfg.HTTP.Port != 0 && cfg.HTTP.SnapshotInterval <= 0 {
		return fmt.Errorf("http.snapshot_interval must be positive")
	}
	if err := validPort("grpc.port", cfg.GRPC.Port); err != nil {
		return err
	}
	if cfg.HTTP.Port != 0 && cfg.HTTP.Port == cfg.GRPC.Port {
		return fmt.Errorf("http.port and grpc.port must differ")
	}
	switch cfg.GRPC.Auth.Mode {
	case "apikey":
		if cfg.GRPC.Auth.KeyEnv == "" {
			return fmt.Errorf("grpc.auth.key_env is required for apikey mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("grpc.auth: unknown mode %q", cfg.GRPC.Auth.Mode)
	}
	return nil
}

func validPort(field string, p int) error {
	if p < 0 || p > 65535 {
		return fmt.Errorf("%s %d out of range", field, p)
	}
	return nil
}
