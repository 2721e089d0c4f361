// Package state keeps the resume archive: a CSV in the output root recording
// which tracks already downloaded, so a re-run can skip them.
package state

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/models"
)

// Record is one row of the archive.
type Record struct {
	Key         string
	Artist      string
	Title       string
	Playlist    string
	Status      models.Outcome
	Attempts    int
	Error       string
	LastUpdated time.Time
}

// Stats summarizes the archive contents.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
}

var header = []string{"Key", "Artist", "Title", "Playlist", "Status", "Attempts", "Error", "LastUpdated"}

// Manager manages archive persistence
type Manager struct {
	filePath string
	records  map[string]*Record
	order    []string // keys in first-seen order
	mu       sync.RWMutex
}

// NewManager creates a new state manager
func NewManager(filePath string) *Manager {
	return &Manager{
		filePath: filePath,
		records:  make(map[string]*Record),
	}
}

// DefaultPath returns the archive location inside an output root.
func DefaultPath(outRoot string) string {
	return filepath.Join(outRoot, constants.StateFileName)
}

// Path returns the archive file path.
func (m *Manager) Path() string {
	return m.filePath
}

// Load loads state from CSV file
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.filePath); os.IsNotExist(err) {
		return nil // No state file yet, that's OK
	}

	file, err := os.Open(m.filePath)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read state CSV: %w", err)
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < len(header) || row[0] == "" {
			continue
		}

		attempts, _ := strconv.Atoi(row[5])
		lastUpdated, _ := time.Parse(time.RFC3339, row[7])

		m.put(&Record{
			Key:         row[0],
			Artist:      row[1],
			Title:       row[2],
			Playlist:    row[3],
			Status:      models.Outcome(row[4]),
			Attempts:    attempts,
			Error:       row[6],
			LastUpdated: lastUpdated,
		})
	}

	return nil
}

func (m *Manager) put(r *Record) {
	if _, ok := m.records[r.Key]; !ok {
		m.order = append(m.order, r.Key)
	}
	m.records[r.Key] = r
}

// Save saves state to CSV file (atomic write)
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveUnlocked()
}

// saveUnlocked saves state to CSV file without acquiring locks.
// Caller must hold at least RLock on m.mu.
func (m *Manager) saveUnlocked() error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Write to temporary file first
	tempFile := m.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			file.Close()
			os.Remove(tempFile)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write state header: %w", err)
	}

	for _, key := range m.order {
		r := m.records[key]
		row := []string{
			r.Key,
			r.Artist,
			r.Title,
			r.Playlist,
			string(r.Status),
			strconv.Itoa(r.Attempts),
			r.Error,
			r.LastUpdated.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write state record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush state writer: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, m.filePath); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	success = true
	return nil
}

// IsCompleted reports whether track downloaded successfully in an earlier run.
func (m *Manager) IsCompleted(track models.Track) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[track.Key()]
	return ok && r.Status == models.OutcomeSucceeded
}

// Get returns the record for track, or nil.
func (m *Manager) Get(track models.Track) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[track.Key()]; ok {
		cp := *r
		return &cp
	}
	return nil
}

// Record stores a terminal result and saves immediately so an interrupted
// run still resumes correctly. Skipped and cancelled results leave the
// archive untouched.
func (m *Manager) Record(res models.TrackResult) error {
	if res.Outcome != models.OutcomeSucceeded && res.Outcome != models.OutcomeFailed {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := &Record{
		Key:         res.Track.Key(),
		Artist:      res.Track.Artist,
		Title:       res.Track.Title,
		Playlist:    res.Track.Playlist,
		Status:      res.Outcome,
		Attempts:    res.Attempts,
		LastUpdated: time.Now(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	m.put(r)

	return m.saveUnlocked()
}

// Stats counts archive rows by status.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{Total: len(m.records)}
	for _, r := range m.records {
		switch r.Status {
		case models.OutcomeSucceeded:
			s.Succeeded++
		case models.OutcomeFailed:
			s.Failed++
		}
	}
	return s
}
