// Package natsbus publishes detector events to NATS as JSON envelopes on
// "<subject>.<log>.<kind>".
package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

// Envelope is the published message body.
type Envelope struct {
	ID      string         `json:"id"`
	Kind    detector.Kind  `json:"kind"`
	Log     string         `json:"log"`
	Machine string         `json:"machine"`
	Time    time.Time      `json:"time"`
	Event   detector.Event `json:"event"`
}

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher is a sink publishing every event it receives.
type Publisher struct {
	conn    publisher
	subject string
	machine string
}

// Connect dials url. The connection keeps retrying in the background when
// the server is not reachable yet; publishes are buffered meanwhile.
func Connect(url, subject, machine string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("chia-canary"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("natsbus: disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("natsbus: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	slog.Info("natsbus: connecting", "url", url, "subject", subject)
	return newPublisher(conn, subject, machine), nil
}

func newPublisher(conn publisher, subject, machine string) *Publisher {
	return &Publisher{conn: conn, subject: subject, machine: machine}
}

func (p *Publisher) Name() string { return "nats" }

// HandleEvent publishes ev. Failures are logged.
func (p *Publisher) HandleEvent(src logfile.File, ev detector.Event) {
	env := Envelope{
		ID:      uuid.NewString(),
		Kind:    ev.Kind(),
		Log:     src.Name,
		Machine: p.machine,
		Time:    ev.At(),
		Event:   ev,
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("natsbus: marshal event", "kind", env.Kind, "err", err)
		return
	}
	subj := Subject(p.subject, src.Name, env.Kind)
	if err := p.conn.Publish(subj, data); err != nil {
		slog.Error("natsbus: publish failed", "subject", subj, "err", err)
		return
	}
	slog.Debug("natsbus: published", "subject", subj, "id", env.ID)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("natsbus: drain: %w", err)
	}
	slog.Info("natsbus: disconnected")
	return nil
}

// Subject builds the subject for an event of kind from log.
func Subject(base, log string, kind detector.Kind) string {
	return base + "." + token(log) + "." + string(kind)
}

// token lowercases s and replaces characters that are not valid in a
// subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, strings.ToLower(s))
}
