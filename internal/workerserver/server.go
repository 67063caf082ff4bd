// Package workerserver implements the worker-side listener (C6/C7): accept
// connections, enforce the worker-pool ceiling, and serve TRAIN_MODEL,
// SEND_DATASET, and RECV_DATASET requests over one-shot TCP sessions.
package workerserver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/pangea-net/traincoord/internal/cache"
	"github.com/pangea-net/traincoord/internal/codec"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/factory"
	"github.com/pangea-net/traincoord/internal/metrics"
	"github.com/pangea-net/traincoord/internal/wire"
)

// Server is the worker-side TCP listener. One Server owns one Spawner
// (and therefore one Pool ceiling) and one Cache.
type Server struct {
	ln      net.Listener
	cache   *cache.Cache
	reg     *factory.Registry
	spawner *Spawner
	metrics *metrics.Registry
	logger  *log.Logger

	maxWorkers     int
	workerTimeout  time.Duration
}

// Config bundles everything a Server needs at construction.
type Config struct {
	Cache          *cache.Cache
	Registry       *factory.Registry
	Spawner        *Spawner
	Metrics        *metrics.Registry
	Logger         *log.Logger
	MaxWorkers     int
	WorkerTimeout  time.Duration
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, cfg Config) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("workerserver: listen %s: %w", addr, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "workerserver: ", log.LstdFlags)
	}
	return &Server{
		ln:            ln,
		cache:         cfg.Cache,
		reg:           cfg.Registry,
		spawner:       cfg.Spawner,
		metrics:       cfg.Metrics,
		logger:        logger,
		maxWorkers:    cfg.MaxWorkers,
		workerTimeout: cfg.WorkerTimeout,
	}, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

func (s *Server) Close() error { return s.ln.Close() }

// Serve accepts connections serially until the listener is closed or ctx is
// cancelled, handling each on its own goroutine (the worker-pool ceiling,
// not the accept loop, is what bounds concurrency).
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("workerserver: accept: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	active := s.spawner.ActiveWorkers()
	status := wire.StatusIdle
	if active >= s.maxWorkers {
		status = wire.StatusBusy
	}
	header := wire.Header{Status: status, CurrentWorkers: uint8(active), MaxWorkers: uint8(s.maxWorkers)}
	if err := wire.WriteHeader(w, header); err != nil {
		s.logger.Printf("write header: %v", err)
		return
	}
	if err := w.Flush(); err != nil {
		s.logger.Printf("flush header: %v", err)
		return
	}
	if status == wire.StatusBusy {
		return
	}

	reqByte, err := r.ReadByte()
	if err != nil {
		return
	}

	switch wire.Request(reqByte) {
	case wire.RequestTrainModel:
		s.handleTrainModel(ctx, r, w)
	case wire.RequestSendDataset:
		s.handleSendDataset(r, w)
	case wire.RequestRecvDataset:
		s.handleRecvDataset(r, w)
	default:
		s.logger.Printf("unknown request byte %d", reqByte)
	}
}

func (s *Server) handleTrainModel(ctx context.Context, r *bufio.Reader, w *bufio.Writer) {
	hash, err := wire.ReadHash(r)
	if err != nil {
		return
	}
	factoryName, err := codec.ReadString(r)
	if err != nil {
		return
	}
	transforms, err := codec.ReadString(r)
	if err != nil {
		return
	}

	d, ok := s.cache.Get(hash)
	if !ok {
		writeStatus(w, wire.StatusDatasetUnknown)
		w.Flush()
		return
	}
	if _, err := s.reg.Lookup(factoryName); err != nil {
		writeStatus(w, wire.StatusFactoryUnknown)
		w.Flush()
		return
	}

	trainCtx, cancel := context.WithTimeout(ctx, s.workerTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := s.spawner.Train(trainCtx, TrainRequest{FactoryName: factoryName, Transforms: transforms, Dataset: d}, s.workerTimeout)
	if s.metrics != nil {
		s.metrics.TrainDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.JobsFailed.Inc()
		}
		s.logger.Printf("train %s/%s: %v", factoryName, hash, err)
		return
	}

	if err := writeStatus(w, wire.StatusOK); err != nil {
		return
	}
	if err := codec.WriteUvarint(w, uint64(outcome.CPUTimeMillis)); err != nil {
		return
	}
	if err := codec.WriteSvarint(w, int64(outcome.Score)); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	decisionByte, err := r.ReadByte()
	if err != nil {
		return
	}
	if wire.FetchDecision(decisionByte) != wire.SendCode {
		if s.metrics != nil {
			s.metrics.ScoreGateDiscards.Inc()
		}
		return
	}

	if err := writeStatus(w, wire.StatusDataFollows); err != nil {
		return
	}
	if err := codec.WriteNode(w, outcome.Root, false); err != nil {
		s.logger.Printf("write node: %v", err)
		return
	}
	w.Flush()
}

func (s *Server) handleSendDataset(r *bufio.Reader, w *bufio.Writer) {
	hash, err := wire.ReadHash(r)
	if err != nil {
		return
	}
	d, ok := s.cache.Get(hash)
	if !ok {
		writeStatus(w, wire.StatusDatasetUnknown)
		w.Flush()
		return
	}
	if err := writeStatus(w, wire.StatusOK); err != nil {
		return
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := dataset.Write(bw, d); err != nil {
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return
	}
	if s.metrics != nil {
		s.metrics.DatasetBytesSent.Add(float64(buf.Len()))
	}
	w.Flush()
}

func (s *Server) handleRecvDataset(r *bufio.Reader, w *bufio.Writer) {
	hash, err := wire.ReadHash(r)
	if err != nil {
		return
	}
	if s.cache.Has(hash) {
		writeStatus(w, wire.StatusDuplData)
		wire.WriteHash(w, hash)
		wire.WriteHash(w, hash)
		w.Flush()
		return
	}
	if err := writeStatus(w, wire.StatusGoAhead); err != nil {
		return
	}
	if err := w.Flush(); err != nil {
		return
	}

	peerHost, err := codec.ReadString(r)
	if err != nil {
		return
	}
	peerPort, err := codec.ReadUvarint(r)
	if err != nil {
		return
	}

	var d *dataset.Dataset
	if peerHost == "" {
		d, err = dataset.Read(r)
	} else {
		d, err = fetchFromPeer(peerHost, int(peerPort), hash)
	}
	if err != nil {
		s.logger.Printf("recv dataset %s: %v", hash, err)
		writeStatus(w, wire.StatusDataError)
		w.Flush()
		return
	}

	if d.Hash() != hash {
		writeStatus(w, wire.StatusDataError)
		w.Flush()
		return
	}

	s.cache.Put(d)
	writeStatus(w, wire.StatusOK)
	wire.WriteHash(w, hash)
	w.Flush()
}

func writeStatus(w *bufio.Writer, s wire.Status) error {
	return codec.WriteU8(w, byte(s))
}

// fetchFromPeer opens its own REQUEST_SEND_DATASET session against a peer
// worker, per the propagate phase of dissemination (C8).
func fetchFromPeer(host string, port int, hash dataset.Hash) (*dataset.Dataset, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial peer %s:%d: %w", host, port, err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	if _, err := wire.ReadHeader(r); err != nil {
		return nil, fmt.Errorf("peer header: %w", err)
	}
	if err := w.WriteByte(byte(wire.RequestSendDataset)); err != nil {
		return nil, err
	}
	if err := wire.WriteHash(w, hash); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	statusByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if wire.Status(statusByte) != wire.StatusOK {
		return nil, fmt.Errorf("peer returned status %s", wire.Status(statusByte))
	}
	return dataset.Read(r)
}
