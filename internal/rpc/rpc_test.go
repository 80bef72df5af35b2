package rpc

import (
	"context"
	"io"
	"math"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/store"
)

// dial starts svc on an in-memory listener and returns a connected client
// connection.
func dial(t *testing.T, svc RankerServer) *grpc.ClientConn {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, log)
	go srv.Serve(lis) //nolint:errcheck // returns on Stop
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRank_RoundTrip(t *testing.T) {
	t.Parallel()
	conn := dial(t, &Service{Defaults: engine.DefaultRequest()})
	client := NewClient(conn)

	job := engine.Job{
		Corpus: "cycle",
		Graph:  map[string][]string{"a": {"b"}, "b": {"c"}, "c": {"a"}},
	}
	job.Method = config.MethodIterate

	rep, err := client.Rank(context.Background(), job, false)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rep.Corpus != "cycle" || rep.Pages != 3 || rep.Links != 3 {
		t.Errorf("unexpected header %+v", rep)
	}
	sec, ok := rep.Section(report.MethodIterate)
	if !ok {
		t.Fatal("missing iterate section")
	}
	if sec.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", sec.Iterations)
	}
	for _, e := range sec.Ranks {
		if math.Abs(e.Rank-1.0/3) > 1e-9 {
			t.Errorf("%s = %v, want 1/3", e.Page, e.Rank)
		}
	}
}

func TestRank_Saves(t *testing.T) {
	t.Parallel()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	defaults := engine.DefaultRequest()
	defaults.Samples = 300
	conn := dial(t, &Service{Defaults: defaults, History: st})

	rep, err := NewClient(conn).Rank(context.Background(), engine.Job{Edges: "x y\ny x\n"}, true)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rep.RunID == "" {
		t.Fatal("saved run has no RunID")
	}
	if s, ok := rep.Section(report.MethodSample); !ok || s.Samples != 300 {
		t.Errorf("sample section = %+v, want server default of 300 samples", s)
	}
	if _, err := st.Get(context.Background(), rep.RunID); err != nil {
		t.Errorf("run not stored: %v", err)
	}
}

func TestRank_ErrorCodes(t *testing.T) {
	t.Parallel()
	conn := dial(t, &Service{Defaults: engine.DefaultRequest()})
	client := NewClient(conn)

	capped := engine.Job{Edges: "a b\nb c\nc a\na c\n"}
	capped.Method = config.MethodIterate
	capped.Threshold = 1e-15
	capped.MaxIterations = 1

	badDamping := engine.Job{Graph: map[string][]string{"a": {}}}
	badDamping.Damping = 3

	tests := []struct {
		name string
		job  engine.Job
		save bool
		want codes.Code
	}{
		{"empty job", engine.Job{}, false, codes.InvalidArgument},
		{"unknown page", engine.Job{Graph: map[string][]string{"a": {"q"}}}, false, codes.InvalidArgument},
		{"bad damping", badDamping, false, codes.InvalidArgument},
		{"capped", capped, false, codes.FailedPrecondition},
		{"save without history", engine.Job{Edges: "a b"}, true, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := client.Rank(context.Background(), tt.job, tt.save)
			if got := status.Code(err); got != tt.want {
				t.Errorf("code = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestRank_OverLimit(t *testing.T) {
	t.Parallel()
	conn := dial(t, &Service{
		Defaults: engine.DefaultRequest(),
		Limits:   engine.Limits{MaxSamples: 1000, MaxIterations: 100},
	})
	client := NewClient(conn)

	job := engine.Job{Edges: "a b\nb a\n"}
	job.Samples = 1_000_000_000_000
	_, err := client.Rank(context.Background(), job, false)
	if got := status.Code(err); got != codes.InvalidArgument {
		t.Fatalf("code = %s, want InvalidArgument (err %v)", got, err)
	}
	if !strings.Contains(status.Convert(err).Message(), "samples") {
		t.Errorf("message %q does not name samples", status.Convert(err).Message())
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	conn := dial(t, &Service{Defaults: engine.DefaultRequest()})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %s, want SERVING", resp.GetStatus())
	}
}
