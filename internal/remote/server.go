// Package remote models the dispatcher's view of a configured worker
// machine: roster entry, busy/broken state, and the per-round bookkeeping
// dissemination needs.
package remote

import "fmt"

// Server is a roster entry: name, host, port, and the liveness state the
// dispatcher tracks for one dispatch round. Once Broken is set, the server
// is skipped for the remainder of the round. Distribute and the Dispatcher
// mutate these fields in place; the caller builds a fresh set for each
// round (traincoordctl builds one from the config on every command),
// matching the original's server_array_t lifetime.
type Server struct {
	Name string
	Host string
	Port int

	Busy               bool
	LastSeenWorkers    uint8
	Broken             bool
	BrokenReason       string
	HasDataset         bool
}

func New(name, host string, port int) *Server {
	return &Server{Name: name, Host: host, Port: port}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MarkBroken records why a server was dropped from the round. Once broken,
// it stays broken for the remainder of the round (see DESIGN.md on
// per-round bookkeeping scope).
func (s *Server) MarkBroken(reason string) {
	s.Broken = true
	s.BrokenReason = reason
}

// Roster is the set of remote servers considered for one dispatch round.
type Roster struct {
	Servers []*Server
}

// Live returns the servers not yet marked broken.
func (r *Roster) Live() []*Server {
	out := make([]*Server, 0, len(r.Servers))
	for _, s := range r.Servers {
		if !s.Broken {
			out = append(out, s)
		}
	}
	return out
}

// WithDataset returns the servers known to hold the dataset.
func (r *Roster) WithDataset() []*Server {
	out := make([]*Server, 0, len(r.Servers))
	for _, s := range r.Servers {
		if s.HasDataset {
			out = append(out, s)
		}
	}
	return out
}
