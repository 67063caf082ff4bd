package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFallsBackToDefaultsWhenNoFileExists(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mgr := NewManager("missing")

	settings, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.NumSeededHosts != Default().NumSeededHosts {
		t.Fatalf("NumSeededHosts = %d, want default %d", settings.NumSeededHosts, Default().NumSeededHosts)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mgr := NewManager("roundtrip")

	cfg := Default()
	cfg.Roster = []RemoteServerConfig{
		{Name: "w1", Host: "127.0.0.1", Port: 9501},
		{Name: "w2", Host: "127.0.0.1", Port: 9502},
	}
	cfg.NumSeededHosts = 1
	cfg.LimitNetworkIO = false

	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Roster) != 2 || loaded.Roster[0].Name != "w1" || loaded.Roster[1].Port != 9502 {
		t.Fatalf("roster did not round-trip: %+v", loaded.Roster)
	}
	if loaded.NumSeededHosts != 1 {
		t.Fatalf("NumSeededHosts = %d, want 1", loaded.NumSeededHosts)
	}
	if loaded.LimitNetworkIO {
		t.Fatalf("LimitNetworkIO = true, want false")
	}
	if loaded.LastSavedAt == "" {
		t.Fatalf("LastSavedAt was not stamped")
	}
	if _, err := time.Parse(time.RFC3339, loaded.LastSavedAt); err != nil {
		t.Fatalf("LastSavedAt not RFC3339: %v", err)
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	mgr := NewManager("isolation")

	cfg := Default()
	cfg.Roster = []RemoteServerConfig{{Name: "w1", Host: "127.0.0.1", Port: 9501}}
	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := mgr.Get()
	got.Roster[0].Name = "mutated"

	again := mgr.Get()
	if again.Roster[0].Name != "w1" {
		t.Fatalf("mutating a Get() result leaked into the manager's state: %q", again.Roster[0].Name)
	}
}

func TestManagerPathIsUnderDotTraincoord(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	mgr := NewManager("pathcheck")

	want := filepath.Join(home, ".traincoord", "pathcheck_config.json")
	if mgr.path != want {
		t.Fatalf("path = %q, want %q", mgr.path, want)
	}
}
