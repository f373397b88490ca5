// Package checkpoint persists crawl progress so an interrupted run can
// be resumed without refetching every page.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const fileName = "checkpoint.json"

// PendingURL is one frontier entry waiting to be crawled.
type PendingURL struct {
	URL      string  `json:"url"`
	Depth    int     `json:"depth"`
	Priority float64 `json:"priority"`
}

// State is a point-in-time snapshot of crawl progress.
type State struct {
	RunID   string       `json:"run_id"`
	SeedURL string       `json:"seed_url"`
	SavedAt time.Time    `json:"saved_at"`
	Pending []PendingURL `json:"pending"`
	Seen    []string     `json:"seen"`
}

// Manager reads and writes the checkpoint file for one site's mirror
// directory.
type Manager struct {
	mu     sync.Mutex
	path   string
	logger *logrus.Logger
}

// NewManager creates a manager writing into dir.
func NewManager(dir string, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{path: filepath.Join(dir, fileName), logger: logger}
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.path
}

// Save atomically writes a snapshot, replacing any previous one.
func (m *Manager) Save(state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the saved snapshot. It returns nil with no error when no
// checkpoint exists.
func (m *Manager) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &state, nil
}

// Clear removes the checkpoint file.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// AutoSave snapshots on the given interval until stop closes. It is
// meant to run as a goroutine alongside the crawl.
func (m *Manager) AutoSave(interval time.Duration, getState func() *State, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			state := getState()
			if state == nil {
				continue
			}
			if err := m.Save(state); err != nil {
				m.logger.WithError(err).Warn("checkpoint save failed")
			}
		}
	}
}
