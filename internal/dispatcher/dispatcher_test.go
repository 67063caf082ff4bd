package dispatcher

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/cache"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/factory"
	"github.com/pangea-net/traincoord/internal/metrics"
	"github.com/pangea-net/traincoord/internal/remote"
	"github.com/pangea-net/traincoord/internal/workerserver"
)

// TestMain lets this test binary double as the isolated-train child that
// Spawner.Train re-execs (os.Args[0] is this binary under `go test`).
func TestMain(m *testing.M) {
	reg := factory.NewRegistry()
	reg.Register("c10", factory.ConstantFactory(10))
	reg.Register("c5", factory.ConstantFactory(5))
	reg.Register("c20", factory.ConstantFactory(20))
	reg.Register("sleep-long", factory.SleepFactory(time.Hour))
	if handled, err := workerserver.MaybeRunChild(reg); handled {
		if err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func startWorker(t *testing.T, reg *factory.Registry, d *dataset.Dataset) *remote.Server {
	t.Helper()
	selfExe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	c := cache.New()
	c.Put(d)
	m := metrics.New()
	spawner := workerserver.NewSpawner(selfExe, 2, m)
	srv, err := workerserver.Listen("127.0.0.1:0", workerserver.Config{
		Cache: c, Registry: reg, Spawner: spawner, Metrics: m,
		MaxWorkers: 2, WorkerTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Serve(ctx)

	host, portStr, err := net.SplitHostPort(srv.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return remote.New(fmt.Sprintf("w%d", port), host, port)
}

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	cols := []dataset.Column{{Name: "a", Kind: ast.Continuous}, {Name: "b", Kind: ast.Continuous}, {Name: "c", Kind: ast.Continuous}}
	rows := []ast.Row{{Inputs: []ast.Variable{
		{Kind: ast.Continuous, Value: 1.0},
		{Kind: ast.Continuous, Value: 2.0},
		{Kind: ast.Continuous, Value: 4.0},
	}}}
	d, err := dataset.New(cols, rows)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	return d
}

// TestScoreGateDiscardsWorseScores exercises S4 / the score-gating
// invariant: once limit_network_io is on, only a strictly-better-than-best
// score causes code to be fetched.
func TestScoreGateDiscardsWorseScores(t *testing.T) {
	reg := factory.NewRegistry()
	reg.Register("c10", factory.ConstantFactory(10))
	reg.Register("c5", factory.ConstantFactory(5))
	reg.Register("c20", factory.ConstantFactory(20))
	d := sampleDataset(t)

	servers := []*remote.Server{
		startWorker(t, reg, d),
	}
	jobs := []Job{
		{FactoryName: "c10", Transforms: "", Dataset: d},
		{FactoryName: "c5", Transforms: "", Dataset: d},
		{FactoryName: "c20", Transforms: "", Dataset: d},
	}

	disp := New(Config{Servers: servers, Jobs: jobs, AgeTimeout: 5 * time.Second, LimitIO: true})
	outcomes, err := disp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	if outcomes[0].Err != nil || outcomes[0].Code == nil {
		t.Fatalf("job 0 (first, score 10) should fetch code: %+v", outcomes[0])
	}
	if outcomes[1].Err != nil || outcomes[1].Code == nil {
		t.Fatalf("job 1 (score 5, new best) should fetch code: %+v", outcomes[1])
	}
	if outcomes[2].Err != nil || outcomes[2].Code != nil {
		t.Fatalf("job 2 (score 20, worse than best 5) should discard code: %+v", outcomes[2])
	}
}

// TestAgeTimeoutCancelsStuckJob exercises the dispatcher's safety-net
// timeout using a fake clock so the test doesn't sleep in real time.
func TestAgeTimeoutCancelsStuckJob(t *testing.T) {
	reg := factory.NewRegistry()
	reg.Register("sleep-long", factory.SleepFactory(time.Hour))
	d := sampleDataset(t)
	servers := []*remote.Server{startWorker(t, reg, d)}
	jobs := []Job{{FactoryName: "sleep-long", Transforms: "", Dataset: d}}

	fc := clock.NewMock()
	disp := New(Config{Servers: servers, Jobs: jobs, AgeTimeout: time.Second, LimitIO: false, Clock: fc})

	done := make(chan struct{})
	var outcomes []Outcome
	var runErr error
	go func() {
		outcomes, runErr = disp.Run(context.Background())
		close(done)
	}()

	// Give the dispatcher a moment to dial and register the in-flight job,
	// then advance the fake clock well past the age timeout.
	time.Sleep(50 * time.Millisecond)
	fc.Add(2 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatcher did not finish after the age timeout elapsed")
	}
	if runErr != nil {
		t.Fatalf("run: %v", runErr)
	}
	if len(outcomes) != 1 || outcomes[0].Err == nil {
		t.Fatalf("expected job 0 to be cancelled by the age timeout, got %+v", outcomes)
	}
	if outcomes[0].Score != failedScore {
		t.Fatalf("timed-out job score = %d, want failedScore (%d)", outcomes[0].Score, failedScore)
	}
}
