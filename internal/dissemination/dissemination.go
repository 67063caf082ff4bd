// Package dissemination implements seed-then-propagate roster distribution
// (C8): a dataset is pushed to a subset of the roster directly, then to the
// rest peer-to-peer, so the coordinator's own uplink is only used for the
// seed phase.
package dissemination

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/pangea-net/traincoord/internal/codec"
	"github.com/pangea-net/traincoord/internal/dataset"
	"github.com/pangea-net/traincoord/internal/remote"
	"github.com/pangea-net/traincoord/internal/wire"
)

// Result is the outcome of one Distribute call: which servers now hold the
// dataset. Servers that failed are not listed here; they carry Broken and
// BrokenReason on their own remote.Server.
type Result struct {
	Holding []*remote.Server
}

// Distribute seeds d to min(hostsToSeed, len(servers)) roster entries
// directly, then has every remaining server pull it from an already-seeded
// peer. It mutates each remote.Server's HasDataset/Broken fields in place.
func Distribute(servers []*remote.Server, d *dataset.Dataset, hostsToSeed int, readTimeout time.Duration) (*Result, error) {
	n := len(servers)
	if hostsToSeed > n {
		hostsToSeed = n
	}

	uncontacted := make([]*remote.Server, n)
	copy(uncontacted, servers)
	rand.Shuffle(len(uncontacted), func(i, j int) { uncontacted[i], uncontacted[j] = uncontacted[j], uncontacted[i] })

	var seeded []*remote.Server
	successes, failures := 0, 0

	// Seed phase: push the dataset inline to a random uncontacted server
	// until hosts_to_seed have accepted it, or the whole roster has been
	// exhausted first.
	for len(uncontacted) > 0 && successes < hostsToSeed {
		s := uncontacted[0]
		uncontacted = uncontacted[1:]

		if err := sendInline(s, d, readTimeout); err != nil {
			s.MarkBroken(err.Error())
			failures++
		} else {
			s.HasDataset = true
			seeded = append(seeded, s)
			successes++
		}

		if successes+failures == n && successes < hostsToSeed {
			return nil, fmt.Errorf("dissemination: only seeded %d/%d hosts before exhausting the %d-server roster", successes, hostsToSeed, n)
		}
	}

	// Propagate phase: every remaining uncontacted server pulls from a
	// random already-seeded peer.
	for _, s := range uncontacted {
		if len(seeded) == 0 {
			s.MarkBroken("no seeded peer available to propagate from")
			continue
		}
		peer := seeded[rand.Intn(len(seeded))]
		if err := sendViaPeer(s, peer, d.Hash(), readTimeout); err != nil {
			s.MarkBroken(err.Error())
			continue
		}
		s.HasDataset = true
		seeded = append(seeded, s)
	}

	holding := make([]*remote.Server, 0, len(seeded))
	for _, s := range servers {
		if s.HasDataset {
			holding = append(holding, s)
		}
	}
	return &Result{Holding: holding}, nil
}

// sendInline opens a REQUEST_RECV_DATASET session against s and uploads d
// directly over the same connection (empty peer host).
func sendInline(s *remote.Server, d *dataset.Dataset, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", s.Addr(), timeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	header, err := wire.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	s.LastSeenWorkers = header.CurrentWorkers
	if header.Status == wire.StatusBusy {
		return fmt.Errorf("server busy")
	}

	if err := w.WriteByte(byte(wire.RequestRecvDataset)); err != nil {
		return err
	}
	if err := wire.WriteHash(w, d.Hash()); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	statusByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	status := wire.Status(statusByte)
	if status == wire.StatusDuplData {
		// Already cached: two hash echoes follow, but this path doesn't
		// need to read them back since the server reports ownership
		// either way.
		return nil
	}
	if status != wire.StatusGoAhead {
		return fmt.Errorf("unexpected status %s", status)
	}

	// Empty peer host tells the server to read the dataset inline.
	if err := writeEmptyPeer(w); err != nil {
		return err
	}
	if err := dataset.Write(w, d); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	finalByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read final status: %w", err)
	}
	if wire.Status(finalByte) != wire.StatusOK {
		return fmt.Errorf("unexpected final status %s", wire.Status(finalByte))
	}
	if _, err := wire.ReadHash(r); err != nil {
		return fmt.Errorf("read echoed hash: %w", err)
	}
	return nil
}

// sendViaPeer tells s to pull hash from peer rather than uploading it
// directly, so only the seed phase consumes the coordinator's own uplink.
func sendViaPeer(s *remote.Server, peer *remote.Server, hash dataset.Hash, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", s.Addr(), timeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	header, err := wire.ReadHeader(r)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	s.LastSeenWorkers = header.CurrentWorkers
	if header.Status == wire.StatusBusy {
		return fmt.Errorf("server busy")
	}

	if err := w.WriteByte(byte(wire.RequestRecvDataset)); err != nil {
		return err
	}
	if err := wire.WriteHash(w, hash); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	statusByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	status := wire.Status(statusByte)
	if status == wire.StatusDuplData {
		return nil
	}
	if status != wire.StatusGoAhead {
		return fmt.Errorf("unexpected status %s", status)
	}

	if err := writePeerAddr(w, peer.Host, peer.Port); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	finalByte, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read final status: %w", err)
	}
	switch wire.Status(finalByte) {
	case wire.StatusOK:
		if _, err := wire.ReadHash(r); err != nil {
			return fmt.Errorf("read echoed hash: %w", err)
		}
		return nil
	case wire.StatusDataError:
		return fmt.Errorf("peer-to-peer hash verification failed")
	default:
		return fmt.Errorf("unexpected final status %s", wire.Status(finalByte))
	}
}

func writeEmptyPeer(w *bufio.Writer) error {
	if err := codec.WriteString(w, "", false); err != nil {
		return err
	}
	return codec.WriteUvarint(w, 0)
}

func writePeerAddr(w *bufio.Writer, host string, port int) error {
	if err := codec.WriteString(w, host, false); err != nil {
		return err
	}
	return codec.WriteUvarint(w, uint64(port))
}
