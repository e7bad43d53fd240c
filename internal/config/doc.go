// Package config loads, saves and watches the chia-canary configuration file
// (config.yaml).
//
// Top-level types:
//   - Config: machine_name, log_root, error_log_denylist, coin_denylist and
//     the detectors, discord, webhooks, nats, http and grpc sections
//   - DetectorsConfig: detector tunables, converted by Config.Settings
//   - DiscordConfig: bot token (literal or bot_token_env) and the user id
//     that receives direct messages
//   - WebhookConfig, AuthConfig: secrets resolved from environment variables
//
// Load(path) reads the YAML file over Defaults() and validates the result.
// LoadOrCreate writes the defaults first when the file is missing. LoadEnv
// reads an optional .env file next to the config with godotenv.
//
// Watch(ctx, path, onChange) uses fsnotify on the config directory and calls
// onChange with each successfully reloaded Config.
package config
