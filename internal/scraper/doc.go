// Package scraper reads a running canary's Prometheus endpoint and turns the
// chia_canary_* families back into per-log detector states. It backs the
// `canary status` command.
package scraper
