package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixbrucker/chia-canary/internal/detector"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
machine_name: farmer-01
log_root: /srv/chains
error_log_denylist:
  - "Harvester did not respond"
coin_denylist: [chives]
detectors:
  scan_window: 5
  scan_threshold: 10s
  heartbeat_timeout: 90s
discord:
  bot_token: abc
  notification_user_id: "1234"
webhooks:
  - type: slack
    url_env: CANARY_SLACK
nats:
  url: nats://localhost:4222
http:
  port: 9999
grpc:
  port: 9998
  auth:
    mode: apikey
    key_env: CANARY_KEY
`
	cfg := loadFromString(t, yaml)

	if cfg.Machine() != "farmer-01" {
		t.Errorf("machine: got %q", cfg.Machine())
	}
	if root, _ := cfg.Root(); root != "/srv/chains" {
		t.Errorf("root: got %q", root)
	}
	if cfg.Detectors.ScanWindow != 5 {
		t.Errorf("scan_window: got %d", cfg.Detectors.ScanWindow)
	}
	if cfg.Detectors.ScanThreshold != 10*time.Second {
		t.Errorf("scan_threshold: got %v", cfg.Detectors.ScanThreshold)
	}
	if cfg.Detectors.HeartbeatTimeout != 90*time.Second {
		t.Errorf("heartbeat_timeout: got %v", cfg.Detectors.HeartbeatTimeout)
	}
	if cfg.NATS.Subject != DefaultNATSSubject {
		t.Errorf("nats subject default: got %q", cfg.NATS.Subject)
	}
	if cfg.HTTP.Port != 9999 || cfg.GRPC.Port != 9998 {
		t.Errorf("ports: got %d/%d", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if len(cfg.CoinDenylist) != 1 || cfg.CoinDenylist[0] != "chives" {
		t.Errorf("coin_denylist: got %v", cfg.CoinDenylist)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "machine_name: x\n")

	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("default http port: got %d, want %d", cfg.HTTP.Port, DefaultHTTPPort)
	}
	if cfg.HTTP.SnapshotInterval != DefaultSnapshotInterval {
		t.Errorf("default snapshot_interval: got %v", cfg.HTTP.SnapshotInterval)
	}
	if cfg.GRPC.Port != 0 {
		t.Errorf("grpc disabled by default: got %d", cfg.GRPC.Port)
	}
	if cfg.Discord.BotTokenEnv != DefaultBotTokenEnv {
		t.Errorf("default bot_token_env: got %q", cfg.Discord.BotTokenEnv)
	}
	if cfg.Detectors.RepeatedFailureWindow != detector.DefaultRepeatedFailureWindow {
		t.Errorf("default repeated_failure_window: got %v", cfg.Detectors.RepeatedFailureWindow)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown webhook type", "webhooks:\n  - type: pagerduty\n    url_env: X\n"},
		{"webhook without url_env", "webhooks:\n  - type: slack\n"},
		{"negative window", "detectors:\n  scan_window: -1\n"},
		{"negative duration", "detectors:\n  heartbeat_timeout: -5s\n"},
		{"port out of range", "http:\n  port: 70000\n"},
		{"same ports", "http:\n  port: 9000\ngrpc:\n  port: 9000\n"},
		{"unknown auth mode", "grpc:\n  auth:\n    mode: magic\n"},
		{"apikey without key_env", "grpc:\n  auth:\n    mode: apikey\n"},
		{"bad yaml", "detectors: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate() error: %v", err)
	}
	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("http port: got %d", cfg.HTTP.Port)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	// second call loads the existing file
	if _, err := LoadOrCreate(path); err != nil {
		t.Fatalf("LoadOrCreate() second call: %v", err)
	}
}

func TestSave_RoundTripsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Defaults()
	cfg.Detectors.HeartbeatStaleAfter = 15 * time.Minute
	cfg.ErrorLogDenylist = []string{"noisy"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Detectors.HeartbeatStaleAfter != 15*time.Minute {
		t.Errorf("heartbeat_stale_after: got %v", got.Detectors.HeartbeatStaleAfter)
	}
	if len(got.ErrorLogDenylist) != 1 || got.ErrorLogDenylist[0] != "noisy" {
		t.Errorf("error_log_denylist: got %v", got.ErrorLogDenylist)
	}
}

func TestConfig_Settings(t *testing.T) {
	cfg := Defaults()
	cfg.ErrorLogDenylist = []string{"x"}
	cfg.Detectors.ScanWindow = 0

	s := cfg.Settings()
	if s.ScanWindow != detector.DefaultScanWindow {
		t.Errorf("ScanWindow: got %d, want default", s.ScanWindow)
	}
	if len(s.ErrorDenylist) != 1 || s.ErrorDenylist[0] != "x" {
		t.Errorf("ErrorDenylist: got %v", s.ErrorDenylist)
	}
}

func TestConfig_MachineFallsBackToHostname(t *testing.T) {
	host, err := os.Hostname()
	if err != nil {
		t.Skip("no hostname")
	}
	cfg := Defaults()
	if got := cfg.Machine(); got != host {
		t.Errorf("Machine() = %q, want %q", got, host)
	}
}

func TestDiscordConfig_Token(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "")
	d := DiscordConfig{BotToken: "literal", BotTokenEnv: "TEST_DISCORD_TOKEN", NotificationUserID: "1"}
	if got := d.Token(); got != "literal" {
		t.Errorf("Token() with empty env: got %q", got)
	}

	t.Setenv("TEST_DISCORD_TOKEN", "fromenv")
	if got := d.Token(); got != "fromenv" {
		t.Errorf("Token(): got %q, want fromenv", got)
	}
	if !d.Enabled() {
		t.Error("Enabled() = false, want true")
	}

	d.NotificationUserID = ""
	if d.Enabled() {
		t.Error("Enabled() without user id = true")
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	w := WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}
	if got := w.URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{Type: "http"}).URL(); got != "" {
		t.Errorf("URL() without env: got %q", got)
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() without .env: %v", err)
	}

	const name = "CHIA_CANARY_TEST_LOADENV"
	t.Cleanup(func() { os.Unsetenv(name) })
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(name+"=hello\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	if got := os.Getenv(name); got != "hello" {
		t.Errorf("%s = %q, want hello", name, got)
	}
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, Defaults()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { changes <- c }) }()
	time.Sleep(50 * time.Millisecond)

	// invalid content is ignored
	if err := os.WriteFile(path, []byte("http:\n  port: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte("error_log_denylist: [flaky]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// WriteFile truncates first, so intermediate empty reloads may arrive
	timeout := time.After(5 * time.Second)
	for found := false; !found; {
		select {
		case c := <-changes:
			if c.HTTP.Port == -1 {
				t.Fatal("invalid config was applied")
			}
			found = len(c.ErrorLogDenylist) == 1 && c.ErrorLogDenylist[0] == "flaky"
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error: %v", err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
