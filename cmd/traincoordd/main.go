// Command traincoordd is the worker server binary: it accepts TRAIN_MODEL,
// SEND_DATASET, and RECV_DATASET requests and runs isolated training
// children under a bounded worker pool.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pangea-net/traincoord/internal/cache"
	"github.com/pangea-net/traincoord/internal/factory"
	"github.com/pangea-net/traincoord/internal/metrics"
	"github.com/pangea-net/traincoord/internal/observability"
	"github.com/pangea-net/traincoord/internal/workerserver"
)

func main() {
	registry := factory.NewRegistry()
	registry.Register("threshold", factory.ThresholdFactory())

	// A re-exec'd isolated-train invocation must be recognized before any
	// other flag parsing or listener setup happens.
	if handled, err := workerserver.MaybeRunChild(registry); handled {
		if err != nil {
			log.Fatalf("isolated train child: %v", err)
		}
		return
	}

	addr := flag.String("addr", ":9500", "address to listen on")
	maxWorkers := flag.Int("max-workers", 4, "maximum concurrent isolated training children")
	workerTimeout := flag.Duration("worker-timeout", 30*time.Second, "wall-clock timeout before a training child is killed")
	environment := flag.String("environment", "development", "deployment environment reported to crash reporting")
	flag.Parse()

	logger := log.New(os.Stderr, "traincoordd: ", log.LstdFlags)

	reporter, err := observability.NewReporter(*environment)
	if err != nil {
		logger.Fatalf("observability: %v", err)
	}

	selfExe, err := os.Executable()
	if err != nil {
		reporter.CaptureFatal(err)
		logger.Fatalf("resolve self executable: %v", err)
	}

	m := metrics.New()
	spawner := workerserver.NewSpawner(selfExe, *maxWorkers, m)

	srv, err := workerserver.Listen(*addr, workerserver.Config{
		Cache:         cache.New(),
		Registry:      registry,
		Spawner:       spawner,
		Metrics:       m,
		Logger:        logger,
		MaxWorkers:    *maxWorkers,
		WorkerTimeout: *workerTimeout,
	})
	if err != nil {
		reporter.CaptureFatal(err)
		logger.Fatalf("listen: %v", err)
	}
	logger.Printf("listening on %s (max-workers=%d worker-timeout=%s)", srv.Addr(), *maxWorkers, *workerTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx); err != nil {
		reporter.CaptureFatal(err)
		logger.Fatalf("serve: %v", err)
	}
}
