package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/felixbrucker/chia-canary/internal/api"
	"github.com/felixbrucker/chia-canary/internal/canary"
	"github.com/felixbrucker/chia-canary/internal/config"
	"github.com/felixbrucker/chia-canary/internal/dispatch"
	"github.com/felixbrucker/chia-canary/internal/health"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/metrics"
	"github.com/felixbrucker/chia-canary/internal/sink/discord"
	"github.com/felixbrucker/chia-canary/internal/sink/logsink"
	"github.com/felixbrucker/chia-canary/internal/sink/natsbus"
	"github.com/felixbrucker/chia-canary/internal/sink/webhook"
	"github.com/felixbrucker/chia-canary/internal/store"
	"github.com/felixbrucker/chia-canary/internal/ws"
)

// shutdownTimeout bounds the flush of notification queues and servers.
const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch every detected debug log (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCanary(cmd.Context(), configPath)
	},
}

// notifiers holds the process-wide sinks shared by every log.
type notifiers struct {
	discord *discord.Notifier
	webhook *webhook.Notifier
	nats    *natsbus.Publisher
}

func runCanary(parent context.Context, path string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("chia-canary starting", "version", version, "config", path)

	if err := config.LoadEnv(path); err != nil {
		slog.Warn("could not load .env file", "err", err)
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	root, err := cfg.Root()
	if err != nil {
		return err
	}
	files, err := logfile.Detect(root, cfg.CoinDenylist)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Warn("nothing to watch, exiting", "root", root, "err", logfile.ErrNoLogFiles)
		return nil
	}

	machine := cfg.Machine()
	slog.Info("config loaded",
		"machine", machine,
		"logs", len(files),
		"http_port", cfg.HTTP.Port,
		"grpc_port", cfg.GRPC.Port,
		"discord", cfg.Discord.Enabled(),
		"webhooks", len(cfg.Webhooks),
		"nats", cfg.NATS.URL != "",
	)

	n := openNotifiers(cfg, machine)
	defer n.close()

	st := store.New(0, 0)
	mets := metrics.New()

	set := canary.NewSet(files, cfg.Settings(), func(f logfile.File) []dispatch.Sink {
		sinks := []dispatch.Sink{logsink.New(f.Name, slog.Default()), mets, st}
		if n.discord != nil {
			sinks = append(sinks, n.discord.For(f.Name))
		}
		if n.webhook.Len() > 0 {
			sinks = append(sinks, n.webhook.For(f.Name))
		}
		if n.nats != nil {
			sinks = append(sinks, n.nats)
		}
		return sinks
	})
	for _, c := range set.Canaries() {
		slog.Info("watching log", "log", c.File().Name, "path", c.File().Path)
	}

	hs := health.New(st)
	hs.Attach()
	syncStates(set, st, mets, hs)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return set.Run(gctx) })
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(cfg.HTTP.SnapshotInterval)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				syncStates(set, st, mets, hs)
			}
		}
	})
	g.Go(func() error {
		err := config.Watch(gctx, path, func(updated *config.Config) {
			set.SetErrorDenylist(updated.ErrorLogDenylist)
			slog.Info("config hot-reloaded", "error_log_denylist", len(updated.ErrorLogDenylist))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
		return nil
	})

	if cfg.HTTP.Port > 0 {
		hub := ws.New(st, machine, cfg.HTTP.SnapshotInterval)
		hub.Attach()
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error { return serveHTTP(gctx, cfg.HTTP.Port, st, hub, mets, machine) })
	}
	if cfg.GRPC.Port > 0 {
		g.Go(func() error { return serveGRPC(gctx, cfg.GRPC, hs) })
	}

	err = g.Wait()
	slog.Info("chia-canary stopped")
	return err
}

// syncStates copies the live detector states into the store, the metrics and
// the health service. Timer driven transitions that emit no event (such as
// the first signage point) only become visible this way.
func syncStates(set *canary.Set, st *store.Store, mets *metrics.Metrics, hs *health.Server) {
	for _, c := range set.Canaries() {
		states := c.States()
		st.Sync(c.File(), states)
		mets.Track(c.File(), states)
	}
	hs.Refresh()
}

func openNotifiers(cfg *config.Config, machine string) *notifiers {
	n := &notifiers{}

	if cfg.Discord.Enabled() {
		d, err := discord.Open(cfg.Discord.Token(), cfg.Discord.NotificationUserID, machine)
		if err != nil {
			slog.Error("discord disabled", "err", err)
		} else {
			n.discord = d
		}
	}

	targets := make([]webhook.Target, 0, len(cfg.Webhooks))
	for _, w := range cfg.Webhooks {
		targets = append(targets, webhook.Target{Type: w.Type, URL: w.URL()})
	}
	n.webhook = webhook.New(targets, machine)
	if n.webhook.Len() < len(cfg.Webhooks) {
		slog.Warn("webhooks without a resolved URL are skipped",
			"configured", len(cfg.Webhooks), "active", n.webhook.Len())
	}

	if cfg.NATS.URL != "" {
		p, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Subject, machine)
		if err != nil {
			slog.Error("nats disabled", "err", err)
		} else {
			n.nats = p
		}
	}
	return n
}

// close flushes pending notifications.
func (n *notifiers) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if n.discord != nil {
		if err := n.discord.Close(ctx); err != nil {
			slog.Warn("discord: close", "err", err)
		}
	}
	if err := n.webhook.Close(ctx); err != nil {
		slog.Warn("webhook: close", "err", err)
	}
	if n.nats != nil {
		if err := n.nats.Close(); err != nil {
			slog.Warn("nats: close", "err", err)
		}
	}
}

func serveHTTP(ctx context.Context, port int, st *store.Store, hub *ws.Hub, mets *metrics.Metrics, machine string) error {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, machine))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", mets.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "err", err)
	}
	return nil
}

func serveGRPC(ctx context.Context, cfg config.GRPCConfig, hs *health.Server) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("grpc listen on port %d: %w", cfg.Port, err)
	}

	key := cfg.Auth.Key()
	if cfg.Auth.Mode == "apikey" && key == "" {
		slog.Warn("grpc auth: api key env is empty, allowing all calls", "env", cfg.Auth.KeyEnv)
	}
	gs := grpc.NewServer(
		grpc.UnaryInterceptor(health.UnaryAPIKey(cfg.Auth.Mode, cfg.Auth.Header, key)),
		grpc.StreamInterceptor(health.StreamAPIKey(cfg.Auth.Mode, cfg.Auth.Header, key)),
	)
	hs.Register(gs)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC health service listening", "port", cfg.Port)
		errCh <- gs.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("grpc server: %w", err)
	case <-ctx.Done():
	}

	hs.Shutdown()
	gs.GracefulStop()
	return nil
}
