package metrics

import "testing"

func TestNewDoesNotPanicOnRepeatedConstruction(t *testing.T) {
	// Each Registry carries its own prometheus.Registry, so building several
	// in one process (as the worker-server and dispatcher test suites both
	// do) must never collide the way registering on the default registry
	// twice would.
	for i := 0; i < 3; i++ {
		r := New()
		if r.Gatherer() == nil {
			t.Fatalf("iteration %d: Gatherer() returned nil", i)
		}
	}
}

func TestCountersStartAtZero(t *testing.T) {
	r := New()
	mf, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mf) == 0 {
		t.Fatalf("expected registered metric families, got none")
	}
	for _, fam := range mf {
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil && c.GetValue() != 0 {
				t.Fatalf("counter %s = %v, want 0", fam.GetName(), c.GetValue())
			}
		}
	}
}

func TestActiveWorkersGaugeTracksSetCalls(t *testing.T) {
	r := New()
	r.ActiveWorkers.Set(3)
	r.ActiveWorkers.Dec()

	mf, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, fam := range mf {
		if fam.GetName() != "traincoord_active_workers" {
			continue
		}
		found = true
		if got := fam.GetMetric()[0].GetGauge().GetValue(); got != 2 {
			t.Fatalf("active workers gauge = %v, want 2", got)
		}
	}
	if !found {
		t.Fatalf("traincoord_active_workers metric family not found")
	}
}
