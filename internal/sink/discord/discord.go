// Package discord sends detector events as direct messages from a bot to a
// single Discord user.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/sink"
)

// Embed colors.
const (
	ColorGreen  = 0x57F287
	ColorRed    = 0xED4245
	ColorOrange = 0xE67E22
)

// session is the subset of *discordgo.Session used here.
type session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier owns the bot session and the delivery queue shared by every
// chain's Sink.
type Notifier struct {
	session session
	userID  string
	machine string
	queue   *sink.Queue

	mu        sync.Mutex
	channelID string
}

// Open creates a REST session for the bot token. No gateway connection is
// made; direct messages only need the REST API.
func Open(token, userID, machine string) (*Notifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	slog.Info("discord: initialized", "user", userID)
	return newNotifier(s, userID, machine), nil
}

func newNotifier(s session, userID, machine string) *Notifier {
	return &Notifier{
		session: s,
		userID:  userID,
		machine: machine,
		queue:   sink.NewQueue("discord", 0, 0),
	}
}

// For returns the sink for one chain.
func (n *Notifier) For(chain string) *Sink {
	return &Sink{n: n, author: chain + " | " + n.machine}
}

// Close flushes pending messages until ctx ends.
func (n *Notifier) Close(ctx context.Context) error {
	return n.queue.Close(ctx)
}

func (n *Notifier) send(ctx context.Context, embed *discordgo.MessageEmbed) error {
	ch, err := n.channel(ctx)
	if err != nil {
		return err
	}
	if _, err := n.session.ChannelMessageSendEmbed(ch, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// channel returns the DM channel with the user, creating it on first use.
func (n *Notifier) channel(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channelID != "" {
		return n.channelID, nil
	}
	ch, err := n.session.UserChannelCreate(n.userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: open dm channel: %w", err)
	}
	n.channelID = ch.ID
	return n.channelID, nil
}

// Sink delivers the events of one chain.
type Sink struct {
	n      *Notifier
	author string
}

func (s *Sink) Name() string { return "discord" }

// HandleEvent renders ev and queues it for delivery.
func (s *Sink) HandleEvent(_ logfile.File, ev detector.Event) {
	embed, ok := s.embed(ev)
	if !ok {
		return
	}
	s.n.queue.Enqueue(func(ctx context.Context) error {
		return s.n.send(ctx, embed)
	})
}

func (s *Sink) embed(ev detector.Event) (*discordgo.MessageEmbed, bool) {
	notice, ok := sink.Describe(ev)
	if !ok {
		return nil, false
	}
	return &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: s.author},
		Color:       color(notice.Severity),
		Description: notice.Text,
	}, true
}

func color(s sink.Severity) int {
	switch s {
	case sink.SeverityOK:
		return ColorGreen
	case sink.SeverityWarning:
		return ColorOrange
	default:
		return ColorRed
	}
}
