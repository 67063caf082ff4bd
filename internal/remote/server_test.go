package remote

import "testing"

func TestAddrFormatsHostPort(t *testing.T) {
	s := New("w1", "10.0.0.1", 9500)
	if got, want := s.Addr(), "10.0.0.1:9500"; got != want {
		t.Fatalf("Addr() = %q, want %q", got, want)
	}
}

func TestMarkBrokenSetsReason(t *testing.T) {
	s := New("w1", "127.0.0.1", 9500)
	s.MarkBroken("dial timeout")
	if !s.Broken {
		t.Fatalf("Broken = false after MarkBroken")
	}
	if s.BrokenReason != "dial timeout" {
		t.Fatalf("BrokenReason = %q, want %q", s.BrokenReason, "dial timeout")
	}
}

func TestRosterLiveExcludesBroken(t *testing.T) {
	a := New("a", "127.0.0.1", 1)
	b := New("b", "127.0.0.1", 2)
	c := New("c", "127.0.0.1", 3)
	b.MarkBroken("boom")

	r := &Roster{Servers: []*Server{a, b, c}}
	live := r.Live()
	if len(live) != 2 {
		t.Fatalf("Live() returned %d servers, want 2", len(live))
	}
	for _, s := range live {
		if s == b {
			t.Fatalf("Live() included broken server %q", s.Name)
		}
	}
}

func TestRosterWithDatasetFiltersHasDataset(t *testing.T) {
	a := New("a", "127.0.0.1", 1)
	b := New("b", "127.0.0.1", 2)
	a.HasDataset = true

	r := &Roster{Servers: []*Server{a, b}}
	holding := r.WithDataset()
	if len(holding) != 1 || holding[0].Name != "a" {
		t.Fatalf("WithDataset() = %+v, want only %q", holding, "a")
	}
}
