package discord

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

type fakeSession struct {
	mu       sync.Mutex
	opened   []string
	sent     []*discordgo.MessageEmbed
	channels []string
	failDM   bool
}

func (f *fakeSession) UserChannelCreate(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDM {
		return nil, errors.New("forbidden")
	}
	f.opened = append(f.opened, id)
	return &discordgo.Channel{ID: "dm-" + id}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(ch string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	f.sent = append(f.sent, e)
	return &discordgo.Message{}, nil
}

var src = logfile.File{Name: "Chia"}

func TestSink_SendsEmbeds(t *testing.T) {
	fs := &fakeSession{}
	n := newNotifier(fs, "42", "farmer-01")
	chia := n.For("Chia")
	flax := n.For("Flax")

	chia.HandleEvent(src, detector.PlotCountEvent{State: detector.StateDegraded, From: 100, To: 80})
	flax.HandleEvent(src, detector.PlotCountEvent{State: detector.StateDegraded, From: 10, To: 12})
	chia.HandleEvent(src, detector.PlotCountEvent{State: detector.StateNormal, From: 80, To: 100})
	chia.HandleEvent(src, detector.HeartbeatStateEvent{State: detector.StateNotRunning})
	require.NoError(t, n.Close(context.Background()))

	require.Len(t, fs.sent, 3)
	assert.Equal(t, []string{"42"}, fs.opened, "DM channel is opened once")
	assert.Equal(t, []string{"dm-42", "dm-42", "dm-42"}, fs.channels)

	assert.Equal(t, "Chia | farmer-01", fs.sent[0].Author.Name)
	assert.Equal(t, ColorRed, fs.sent[0].Color)
	assert.Equal(t, "Plot count degraded from 100 to 80", fs.sent[0].Description)

	assert.Equal(t, "Flax | farmer-01", fs.sent[1].Author.Name)
	assert.Equal(t, ColorOrange, fs.sent[1].Color)

	assert.Equal(t, ColorGreen, fs.sent[2].Color)
	assert.Equal(t, "Plot count recovered from 80 to 100", fs.sent[2].Description)
}

func TestSink_DMFailureIsRetriedNextTime(t *testing.T) {
	fs := &fakeSession{failDM: true}
	n := newNotifier(fs, "42", "m")
	s := n.For("Chia")

	s.HandleEvent(src, detector.ErrorEvent{Message: "boom"})
	require.NoError(t, n.Close(context.Background()))
	assert.Empty(t, fs.sent)
	assert.Equal(t, uint64(1), n.queue.Failed())

	fs.failDM = false
	ch, err := n.channel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dm-42", ch)
}
