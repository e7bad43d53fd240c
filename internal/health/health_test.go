package health_test

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/health"
	"github.com/felixbrucker/chia-canary/internal/logfile"
	"github.com/felixbrucker/chia-canary/internal/store"
)

var (
	chia = logfile.File{Name: "Chia", Path: "/h/.chia/mainnet/log/debug.log"}
	flax = logfile.File{Name: "Flax", Path: "/h/.flax/mainnet/log/debug.log"}
)

func normal() map[string]detector.State {
	return map[string]detector.State{
		detector.NamePlotCount: detector.StateNormal,
		detector.NameHeartbeat: detector.StateNotRunning,
	}
}

// startServer serves hs over an in-memory listener and returns a client.
func startServer(t *testing.T, hs *health.Server, opts ...grpc.ServerOption) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(opts...)
	hs.Register(gs)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet", //nolint:staticcheck
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, svc string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
	if err != nil {
		t.Fatalf("Check(%q): %v", svc, err)
	}
	return resp.Status
}

func TestRefresh_ServingAndDegraded(t *testing.T) {
	st := store.New(10, time.Hour)
	st.Sync(chia, normal())
	st.Sync(flax, normal())

	hs := health.New(st)
	hs.Attach()
	hs.Refresh()
	c := startServer(t, hs)

	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall: got %v, want SERVING", got)
	}
	if got := check(t, c, "chia"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("chia: got %v, want SERVING", got)
	}

	st.HandleEvent(flax, detector.PlotCountEvent{State: detector.StateDegraded, From: 10, To: 9})

	if got := check(t, c, "flax"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("flax: got %v, want NOT_SERVING", got)
	}
	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("overall: got %v, want NOT_SERVING", got)
	}
	if got := check(t, c, "chia"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("chia: got %v, want SERVING", got)
	}

	st.HandleEvent(flax, detector.PlotCountEvent{State: detector.StateNormal, From: 9, To: 10})
	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall after recovery: got %v, want SERVING", got)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	hs := health.New(store.New(10, time.Hour))
	hs.Refresh()
	c := startServer(t, hs)

	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("code: got %v, want NotFound", status.Code(err))
	}
}

func TestCheck_RequiresAPIKey(t *testing.T) {
	hs := health.New(store.New(10, time.Hour))
	hs.Refresh()
	c := startServer(t, hs,
		grpc.UnaryInterceptor(health.UnaryAPIKey("apikey", "x-api-key", "secret")),
		grpc.StreamInterceptor(health.StreamAPIKey("apikey", "x-api-key", "secret")))

	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("without key: got %v, want Unauthenticated", status.Code(err))
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "secret")
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status: got %v", resp.Status)
	}
}

func TestShutdown_NotServing(t *testing.T) {
	st := store.New(10, time.Hour)
	st.Sync(chia, normal())
	hs := health.New(st)
	hs.Refresh()
	c := startServer(t, hs)

	hs.Shutdown()
	if got := check(t, c, "chia"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("chia: got %v, want NOT_SERVING", got)
	}
}

func TestService(t *testing.T) {
	if got := health.Service("Chia"); got != "chia" {
		t.Errorf("Service: got %q", got)
	}
}
