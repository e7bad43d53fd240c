// Package webhook posts detector events to Slack, Microsoft Teams or plain
// HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/sink"
)

// Target is one webhook endpoint.
type Target struct {
	// Type is one of: slack | teams | http.
	Type string
	URL  string
}

// Notifier delivers to every target through one queue.
type Notifier struct {
	targets []Target
	machine string
	client  *http.Client
	queue   *sink.Queue
}

// New returns a notifier. Targets with an empty URL are skipped.
func New(targets []Target, machine string) *Notifier {
	var live []Target
	for _, t := range targets {
		if t.URL == "" {
			slog.Warn("webhook: url not set, skipping target", "type", t.Type)
			continue
		}
		live = append(live, t)
	}
	return &Notifier{
		targets: live,
		machine: machine,
		client:  &http.Client{Timeout: 10 * time.Second},
		queue:   sink.NewQueue("webhook", 0, 0),
	}
}

// Len returns the number of usable targets.
func (n *Notifier) Len() int { return len(n.targets) }

// For returns the sink for one chain.
func (n *Notifier) For(chain string) *Sink {
	return &Sink{n: n, chain: chain}
}

// Close flushes pending deliveries until ctx ends.
func (n *Notifier) Close(ctx context.Context) error {
	return n.queue.Close(ctx)
}

// Sink delivers the events of one chain.
type Sink struct {
	n     *Notifier
	chain string
}

func (s *Sink) Name() string { return "webhook" }

// HandleEvent renders ev and queues one delivery per target.
func (s *Sink) HandleEvent(src logfile.File, ev detector.Event) {
	notice, ok := sink.Describe(ev)
	if !ok {
		return
	}
	m := message{
		Log:      src.Name,
		Machine:  s.n.machine,
		Kind:     ev.Kind(),
		Severity: notice.Severity.String(),
		Text:     notice.Text,
		Time:     ev.At(),
		Event:    ev,
	}
	for _, t := range s.n.targets {
		t := t
		s.n.queue.Enqueue(func(ctx context.Context) error {
			if err := s.n.deliver(ctx, t, m); err != nil {
				return fmt.Errorf("webhook %s: %w", t.Type, err)
			}
			slog.Debug("webhook: delivered", "type", t.Type, "log", m.Log, "kind", m.Kind)
			return nil
		})
	}
}

type message struct {
	Log      string         `json:"log"`
	Machine  string         `json:"machine"`
	Kind     detector.Kind  `json:"kind"`
	Severity string         `json:"severity"`
	Text     string         `json:"message"`
	Time     time.Time      `json:"time"`
	Event    detector.Event `json:"event"`
}

func (n *Notifier) deliver(ctx context.Context, t Target, m message) error {
	var payload any
	switch t.Type {
	case "slack":
		payload = map[string]string{
			"text": fmt.Sprintf("%s *%s | %s*\n%s", severityLabel(m.Severity), m.Log, m.Machine, m.Text),
		}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(m.Severity),
			"summary":    string(m.Kind),
			"title":      fmt.Sprintf("chia-canary: %s | %s", m.Log, m.Machine),
			"text":       m.Text,
		}
	case "http":
		payload = m
	default:
		return fmt.Errorf("unknown type %q", t.Type)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return n.post(ctx, t.URL, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[OK]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "ED4245"
	case "warning":
		return "E67E22"
	default:
		return "57F287"
	}
}
