package download

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/models"
)

// ErrorLog is the per-run list of failed tracks, ERROR_yy_mm_dd-HH-MM-SS.log
// in the output root. The file is created on the first failure only.
type ErrorLog struct {
	mu       sync.Mutex
	path     string
	detailed bool
	file     *os.File
	count    int
}

// NewErrorLog prepares an error log for a run that started at started.
// When detailed is set each line carries the failure reason.
func NewErrorLog(dir string, started time.Time, detailed bool) *ErrorLog {
	return &ErrorLog{
		path:     filepath.Join(dir, started.Format(constants.ErrorLogNameFormat)),
		detailed: detailed,
	}
}

// Append writes "<artist> — <title> failed" for track.
func (l *ErrorLog) Append(track models.Track, reason error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open error log: %w", err)
		}
		l.file = f
	}

	line := track.Label() + " failed"
	if l.detailed && reason != nil {
		line += ": " + reason.Error()
	}
	if _, err := fmt.Fprintln(l.file, line); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	l.count++
	return nil
}

// Path returns the log path, or "" when nothing has been written.
func (l *ErrorLog) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return ""
	}
	return l.path
}

// Count returns the number of lines written.
func (l *ErrorLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Close closes the underlying file if it was opened.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
