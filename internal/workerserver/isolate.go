package workerserver

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/codec"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/factory"
	"github.com/pangea-net/traincoord/internal/metrics"
)

// isolatedTrainFlag is the hidden re-exec flag: Go has no fork(), so
// isolation is achieved by re-invoking the same binary as a child process
// with a marker argument instead. This is the substitute design notes §9
// calls for ("implementations may substitute process isolation
// equivalents").
const isolatedTrainFlag = "-isolated-train"

// TrainRequest is what the parent hands an isolated child over its stdin.
type TrainRequest struct {
	FactoryName string
	Transforms  string
	Dataset     *dataset.Dataset
}

// TrainOutcome is what a child reports back over stdout.
type TrainOutcome struct {
	Root          *ast.Node
	Score         int32
	CPUTimeMillis int64
}

// MaybeRunChild checks whether this process invocation is an isolated
// training child (re-exec'd by Spawner.Train) and, if so, runs it to
// completion and returns true so the caller's main() can exit immediately
// without falling through to normal startup.
func MaybeRunChild(registry *factory.Registry) (handled bool, err error) {
	args := os.Args[1:]
	if len(args) == 0 || args[0] != isolatedTrainFlag {
		return false, nil
	}

	fs := flag.NewFlagSet("isolated-train", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "wall-clock timeout before self-kill")
	if err := fs.Parse(args[1:]); err != nil {
		return true, err
	}

	runChild(registry, *timeout)
	return true, nil
}

// runChild sets its own wall-clock alarm and self-kills with SIGKILL on
// expiry, so a runaway factory cannot escape its budget — this is the
// essential feature design notes §9 calls out: in-process threading is
// unacceptable because a training run cannot be safely interrupted.
func runChild(registry *factory.Registry, timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		syscall.Kill(os.Getpid(), syscall.SIGKILL)
	})
	defer timer.Stop()

	r := bufio.NewReader(os.Stdin)
	w := bufio.NewWriter(os.Stdout)

	req, err := readTrainRequest(r)
	if err != nil {
		writeTrainError(w, err)
		w.Flush()
		os.Exit(1)
	}

	f, err := registry.Lookup(req.FactoryName)
	if err != nil {
		writeTrainError(w, err)
		w.Flush()
		os.Exit(1)
	}

	start := time.Now()
	root, score, err := f.Train(context.Background(), req.Dataset, req.Transforms)
	if err != nil {
		writeTrainError(w, err)
		w.Flush()
		os.Exit(1)
	}

	writeTrainOutcome(w, &TrainOutcome{Root: root, Score: score, CPUTimeMillis: time.Since(start).Milliseconds()})
	if err := w.Flush(); err != nil {
		os.Exit(1)
	}
}

// Spawner launches isolated training children, bounded by a Pool, and
// reaps them asynchronously.
type Spawner struct {
	selfExe string
	pool    *Pool
	metrics *metrics.Registry
}

func NewSpawner(selfExe string, maxWorkers int, m *metrics.Registry) *Spawner {
	return &Spawner{selfExe: selfExe, pool: NewPool(maxWorkers), metrics: m}
}

func (s *Spawner) ActiveWorkers() int { return s.pool.Len() }

// Train reserves a pool slot, re-execs the binary as an isolated child,
// feeds it req, and waits for its TrainOutcome. The child enforces its own
// wall-clock kill; ctx additionally bounds how long Train itself will wait
// for a reservation to free up.
func (s *Spawner) Train(ctx context.Context, req TrainRequest, timeout time.Duration) (*TrainOutcome, error) {
	if err := s.pool.Reserve(ctx); err != nil {
		return nil, fmt.Errorf("workerserver: reserve slot: %w", err)
	}

	cmd := exec.Command(s.selfExe, isolatedTrainFlag, "-timeout", timeout.String())
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.pool.Release()
		return nil, fmt.Errorf("workerserver: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.pool.Release()
		return nil, fmt.Errorf("workerserver: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.pool.Release()
		return nil, fmt.Errorf("workerserver: start child: %w", err)
	}
	pid := cmd.Process.Pid
	s.pool.MarkRunning(pid)
	s.reportActive()

	bw := bufio.NewWriter(stdin)
	writeErr := writeTrainRequest(bw, &req)
	if ferr := bw.Flush(); writeErr == nil {
		writeErr = ferr
	}
	stdin.Close()

	br := bufio.NewReader(stdout)
	outcome, readErr := readTrainOutcome(br)

	go func() {
		cmd.Wait()
		s.pool.Reap(pid)
		s.reportActive()
	}()

	if writeErr != nil {
		return nil, fmt.Errorf("workerserver: write request to worker %d: %w", pid, writeErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("workerserver: worker %d: %w", pid, readErr)
	}
	return outcome, nil
}

func (s *Spawner) reportActive() {
	if s.metrics != nil {
		s.metrics.ActiveWorkers.Set(float64(s.pool.Len()))
	}
}

func writeTrainRequest(w *bufio.Writer, req *TrainRequest) error {
	if err := codec.WriteString(w, req.FactoryName, false); err != nil {
		return err
	}
	if err := codec.WriteString(w, req.Transforms, false); err != nil {
		return err
	}
	return dataset.Write(w, req.Dataset)
}

func readTrainRequest(r *bufio.Reader) (*TrainRequest, error) {
	name, err := codec.ReadString(r)
	if err != nil {
		return nil, err
	}
	transforms, err := codec.ReadString(r)
	if err != nil {
		return nil, err
	}
	d, err := dataset.Read(r)
	if err != nil {
		return nil, err
	}
	return &TrainRequest{FactoryName: name, Transforms: transforms, Dataset: d}, nil
}

const (
	childStatusOK byte = iota
	childStatusErr
)

func writeTrainError(w *bufio.Writer, err error) {
	codec.WriteU8(w, childStatusErr)
	codec.WriteString(w, err.Error(), false)
}

func writeTrainOutcome(w *bufio.Writer, o *TrainOutcome) error {
	if err := codec.WriteU8(w, childStatusOK); err != nil {
		return err
	}
	if err := codec.WriteSvarint(w, o.CPUTimeMillis); err != nil {
		return err
	}
	if err := codec.WriteSvarint(w, int64(o.Score)); err != nil {
		return err
	}
	return codec.WriteNode(w, o.Root, false)
}

func readTrainOutcome(r *bufio.Reader) (*TrainOutcome, error) {
	status, err := codec.ReadU8(r)
	if err != nil {
		return nil, fmt.Errorf("worker produced no output (likely killed): %w", err)
	}
	if status == childStatusErr {
		msg, err := codec.ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("worker reported an error, and its message was unreadable: %w", err)
		}
		return nil, fmt.Errorf("worker: %s", msg)
	}
	cpu, err := codec.ReadSvarint(r)
	if err != nil {
		return nil, err
	}
	score, err := codec.ReadSvarint(r)
	if err != nil {
		return nil, err
	}
	root, err := codec.ReadNode(r)
	if err != nil {
		return nil, err
	}
	return &TrainOutcome{Root: root, Score: int32(score), CPUTimeMillis: cpu}, nil
}
