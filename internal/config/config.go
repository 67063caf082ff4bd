// Package config loads and saves the dispatcher's external settings: the
// roster of remote workers plus the timeouts and bandwidth knobs the core
// consumes through an external configuration object (spec §6).
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RemoteServerConfig is one roster entry as read from disk.
type RemoteServerConfig struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Settings exposes exactly the fields the dispatcher and dissemination
// components need from an external configuration object.
type Settings struct {
	Roster                []RemoteServerConfig `json:"roster"`
	NumSeededHosts        int                  `json:"num_seeded_hosts"`
	RemoteReadTimeout     time.Duration        `json:"remote_read_timeout"`
	RemoteWorkerTimeout   time.Duration        `json:"remote_worker_timeout"`
	NumRemoteServers      int                  `json:"num_remote_servers"`
	NumberOfRemoteWorkers int                  `json:"number_of_remote_workers"`
	LimitNetworkIO        bool                 `json:"limit_network_io"`

	LastSavedAt string `json:"last_saved_at,omitempty"`
}

// Default returns reasonable defaults for local testing: an empty roster,
// generous timeouts, bandwidth limiting on (the score gate is the point of
// the system).
func Default() *Settings {
	return &Settings{
		NumSeededHosts:        2,
		RemoteReadTimeout:     10 * time.Second,
		RemoteWorkerTimeout:   30 * time.Second,
		NumRemoteServers:      4,
		NumberOfRemoteWorkers: 4,
		LimitNetworkIO:        true,
	}
}

// Manager handles loading and saving Settings, grounded on the teacher's
// ConfigManager: home-directory-relative path, graceful fallback to
// defaults, deep-copy on read.
type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  *Settings
}

// NewManager creates a manager for the given coordinator name, storing its
// settings at ~/.traincoord/<name>_config.json (falling back to the OS
// temp directory if the home directory is unavailable).
func NewManager(name string) *Manager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("config: could not resolve home directory: %v", err)
		homeDir = os.TempDir()
	}
	dir := filepath.Join(homeDir, ".traincoord")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("config: could not create config directory: %v", err)
		dir = os.TempDir()
	}
	return &Manager{
		path: filepath.Join(dir, fmt.Sprintf("%s_config.json", name)),
		cfg:  Default(),
	}
}

// Load reads settings from disk, falling back to defaults if no file
// exists yet.
func (m *Manager) Load() (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		log.Printf("config: no config file at %s, using defaults", m.path)
		return m.cfg, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	m.cfg = cfg
	return m.cfg, nil
}

// Save writes cfg to disk, stamping LastSavedAt.
func (m *Manager) Save(cfg *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg.LastSavedAt = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	m.cfg = cfg
	return nil
}

// Get returns a deep copy of the current settings.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.cfg
	cp.Roster = make([]RemoteServerConfig, len(m.cfg.Roster))
	copy(cp.Roster, m.cfg.Roster)
	return &cp
}
