// Package dispatcher implements the job dispatcher (C9): round-robin
// assignment of TRAIN_MODEL requests across a roster, score-gated fetch of
// winning code, and an age-based timeout as a safety net against stuck
// connections.
package dispatcher

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/codec"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/metrics"
	"github.com/pangea-net/traincoord/internal/remote"
	"github.com/pangea-net/traincoord/internal/wire"
)

// failedScore is reported for any job that never produces a usable result
// (transient failure, protocol mismatch, or age timeout), matching
// net.c's dest->score = INT32_MAX on any non-OK response: a failed job
// must never look like the best (lowest-scoring) result.
const failedScore = math.MaxInt32

// Job is one requested training run: a (factory, transforms, dataset)
// triple to be sent to some server in the roster.
type Job struct {
	FactoryName string
	Transforms  string
	Dataset     *dataset.Dataset
}

// Outcome is what a completed or abandoned RemoteJob produced.
type Outcome struct {
	JobIndex int
	Score    int32
	Code     *ast.Node // nil when the score gate discarded it, or on failure
	Err      error
}

// RemoteJob tracks one in-flight TRAIN_MODEL request.
type RemoteJob struct {
	ID        uuid.UUID
	JobIndex  int
	Server    *remote.Server
	conn      net.Conn
	r         *bufio.Reader
	w         *bufio.Writer
	StartedAt time.Time

	done bool
}

// Dispatcher runs one dispatch round over a fixed roster and job list. It
// is not safe for concurrent use by multiple goroutines; the original's
// single-threaded cooperative-polling model is reproduced with ordinary
// sequential Go rather than real concurrency, since nothing here needs it.
type Dispatcher struct {
	servers []*remote.Server
	jobs    []Job

	ageTimeout time.Duration
	limitIO    bool
	clock      clock.Clock
	metrics    *metrics.Registry

	mu        sync.Mutex
	bestScore int32
	haveBest  bool
}

// Config configures a Dispatcher.
type Config struct {
	Servers    []*remote.Server
	Jobs       []Job
	AgeTimeout time.Duration
	LimitIO    bool
	Clock      clock.Clock
	Metrics    *metrics.Registry
}

func New(cfg Config) *Dispatcher {
	cl := cfg.Clock
	if cl == nil {
		cl = clock.New()
	}
	return &Dispatcher{
		servers:    cfg.Servers,
		jobs:       cfg.Jobs,
		ageTimeout: cfg.AgeTimeout,
		limitIO:    cfg.LimitIO,
		clock:      cl,
		metrics:    cfg.Metrics,
	}
}

// Run drives the dispatch loop to completion and returns one Outcome per
// job, in job order (not completion order — completion order is
// unconstrained per spec, but callers generally want results indexable by
// the job they asked for).
func (d *Dispatcher) Run(ctx context.Context) ([]Outcome, error) {
	outcomes := make([]Outcome, len(d.jobs))
	for i := range outcomes {
		outcomes[i] = Outcome{JobIndex: i, Score: failedScore, Err: fmt.Errorf("job never dispatched")}
	}

	var inFlight []*RemoteJob
	nextJob := 0
	nextServer := 0

	for nextJob < len(d.jobs) || len(inFlight) > 0 {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		// Step 1: dispatch the next job to the next free server,
		// round-robin.
		if nextJob < len(d.jobs) && len(d.servers) > 0 {
			s := d.servers[nextServer%len(d.servers)]
			nextServer++
			if !s.Broken && !s.Busy {
				rj, err := d.send(s, nextJob, d.jobs[nextJob])
				if err != nil {
					s.MarkBroken(err.Error())
					outcomes[nextJob] = Outcome{JobIndex: nextJob, Score: failedScore, Err: err}
					nextJob++
				} else {
					inFlight = append(inFlight, rj)
					nextJob++
				}
				if d.metrics != nil {
					d.metrics.JobsDispatched.Inc()
				}
				continue
			}
		}

		if len(inFlight) == 0 {
			if nextJob >= len(d.jobs) {
				break
			}
			continue
		}

		// Step 2: poll every in-flight job for a readable score.
		progressed := false
		remaining := inFlight[:0]
		for _, rj := range inFlight {
			if rj.done {
				continue
			}
			ready, err := pollReadable(rj.conn, rj.r)
			if err != nil {
				outcomes[rj.JobIndex] = Outcome{JobIndex: rj.JobIndex, Score: failedScore, Err: err}
				rj.Server.MarkBroken(err.Error())
				rj.conn.Close()
				rj.done = true
				progressed = true
				continue
			}
			if !ready {
				// Step 3: age-based timeout, checked once this job's
				// socket isn't readable yet.
				if nextJob >= len(d.jobs) && d.clock.Since(rj.StartedAt) > d.ageTimeout {
					rj.conn.Close()
					rj.done = true
					outcomes[rj.JobIndex] = Outcome{JobIndex: rj.JobIndex, Score: failedScore, Err: fmt.Errorf("dispatcher: job exceeded age timeout %s", d.ageTimeout)}
					rj.Server.MarkBroken("age timeout")
					if d.metrics != nil {
						d.metrics.JobsTimedOut.Inc()
					}
					progressed = true
					continue
				}
				remaining = append(remaining, rj)
				continue
			}

			outcome, err := d.completeJob(rj)
			rj.conn.Close()
			rj.done = true
			progressed = true
			if err != nil {
				outcomes[rj.JobIndex] = Outcome{JobIndex: rj.JobIndex, Score: failedScore, Err: err}
				rj.Server.MarkBroken(err.Error())
				if d.metrics != nil {
					d.metrics.JobsFailed.Inc()
				}
				continue
			}
			outcomes[rj.JobIndex] = outcome
		}
		inFlight = remaining

		if !progressed && nextJob >= len(d.jobs) {
			// Nothing readable yet and nothing to dispatch: give sockets
			// a moment rather than spinning a hot loop.
			time.Sleep(time.Millisecond)
		}
	}

	return outcomes, nil
}

func (d *Dispatcher) send(s *remote.Server, jobIndex int, job Job) (*RemoteJob, error) {
	conn, err := net.DialTimeout("tcp", s.Addr(), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.Addr(), err)
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	header, err := wire.ReadHeader(r)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read header from %s: %w", s.Addr(), err)
	}
	s.LastSeenWorkers = header.CurrentWorkers
	if header.Status == wire.StatusBusy {
		conn.Close()
		s.Busy = true
		return nil, fmt.Errorf("%s is busy", s.Addr())
	}

	if err := w.WriteByte(byte(wire.RequestTrainModel)); err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteHash(w, job.Dataset.Hash()); err != nil {
		conn.Close()
		return nil, err
	}
	if err := codec.WriteString(w, job.FactoryName, false); err != nil {
		conn.Close()
		return nil, err
	}
	if err := codec.WriteString(w, job.Transforms, false); err != nil {
		conn.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		conn.Close()
		return nil, err
	}

	return &RemoteJob{
		ID:        uuid.New(),
		JobIndex:  jobIndex,
		Server:    s,
		conn:      conn,
		r:         r,
		w:         w,
		StartedAt: d.clock.Now(),
	}, nil
}

// completeJob reads the TRAIN_MODEL response once rj's socket is readable,
// applies the score gate, and returns the resulting Outcome.
func (d *Dispatcher) completeJob(rj *RemoteJob) (Outcome, error) {
	statusByte, err := rj.r.ReadByte()
	if err != nil {
		return Outcome{}, fmt.Errorf("read status: %w", err)
	}
	switch wire.Status(statusByte) {
	case wire.StatusDatasetUnknown:
		return Outcome{}, fmt.Errorf("server reported DATASET_UNKNOWN")
	case wire.StatusFactoryUnknown:
		return Outcome{}, fmt.Errorf("server reported FACTORY_UNKNOWN")
	case wire.StatusOK:
		// fall through
	default:
		marked := wire.Status(statusByte | wire.InvalidResponseFlag)
		return Outcome{}, fmt.Errorf("unexpected status %s", marked)
	}

	if _, err := codec.ReadUvarint(rj.r); err != nil { // CPU time, unused by the gate
		return Outcome{}, fmt.Errorf("read cpu time: %w", err)
	}
	scoreRaw, err := codec.ReadSvarint(rj.r)
	if err != nil {
		return Outcome{}, fmt.Errorf("read score: %w", err)
	}
	score := int32(scoreRaw)

	fetch := d.shouldFetch(score)
	decision := wire.DiscardCode
	if fetch {
		decision = wire.SendCode
	}
	if err := rj.w.WriteByte(byte(decision)); err != nil {
		return Outcome{}, err
	}
	if err := rj.w.Flush(); err != nil {
		return Outcome{}, err
	}

	if !fetch {
		if d.metrics != nil {
			d.metrics.ScoreGateDiscards.Inc()
		}
		return Outcome{JobIndex: rj.JobIndex, Score: score}, nil
	}

	followsByte, err := rj.r.ReadByte()
	if err != nil {
		return Outcome{}, fmt.Errorf("read DATA_FOLLOWS: %w", err)
	}
	if wire.Status(followsByte) != wire.StatusDataFollows {
		marked := wire.Status(followsByte | wire.InvalidResponseFlag)
		return Outcome{}, fmt.Errorf("expected DATA_FOLLOWS, got %s", marked)
	}
	node, err := codec.ReadNode(rj.r)
	if err != nil {
		return Outcome{}, fmt.Errorf("read node: %w", err)
	}
	return Outcome{JobIndex: rj.JobIndex, Score: score, Code: node}, nil
}

// shouldFetch applies the score-gating invariant: once limit_network_io is
// set, best_score only moves downward, and code is fetched only for scores
// strictly better than the current best. With the gate disabled every
// winning-candidate code is fetched unconditionally.
func (d *Dispatcher) shouldFetch(score int32) bool {
	if !d.limitIO {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.haveBest || score < d.bestScore {
		d.bestScore = score
		d.haveBest = true
		return true
	}
	return false
}

// pollReadable reports whether r has a byte ready to read without blocking,
// the Go equivalent of the original's zero-timeout select loop. It uses
// Peek rather than Read so the byte stays available for completeJob's
// normal read path.
func pollReadable(conn net.Conn, r *bufio.Reader) (bool, error) {
	if err := conn.SetReadDeadline(time.Now()); err != nil {
		return false, err
	}
	defer conn.SetReadDeadline(time.Time{})

	if _, err := r.Peek(1); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
