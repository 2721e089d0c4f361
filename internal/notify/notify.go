// Package notify sends desktop notifications when a batch finishes.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/models"
)

func init() {
	beeep.AppName = constants.AppName
}

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	// send and alert are beeep.Notify and beeep.Alert outside tests
	send  func(title, message string) error
	alert func(title, message string) error
}

// NewNotifier creates a notifier. A nil logger discards send errors.
func NewNotifier(enabled bool, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Notifier{
		logger:  logger,
		enabled: enabled,
		send:    func(title, message string) error { return beeep.Notify(title, message, "") },
		alert:   func(title, message string) error { return beeep.Alert(title, message, "") },
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// BatchFinished announces the end of a run. Runs with failures use the
// more prominent alert, falling back to a plain notification.
func (n *Notifier) BatchFinished(s models.Summary) {
	if !n.IsEnabled() {
		return
	}
	title, message := batchMessage(s)

	if s.Failed > 0 && !s.Stopped {
		if err := n.alert(title, message); err == nil {
			return
		}
	}
	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send desktop notification")
	}
}

// BatchFailed announces a run that could not start.
func (n *Notifier) BatchFailed(err error) {
	if !n.IsEnabled() || err == nil {
		return
	}
	if sendErr := n.send(constants.AppName+": download failed", truncate(err.Error(), 100)); sendErr != nil {
		n.logger.Warn().Err(sendErr).Msg("Failed to send desktop notification")
	}
}

func batchMessage(s models.Summary) (string, string) {
	if s.Stopped {
		return "Downloads stopped",
			fmt.Sprintf("%d of %d tracks done before the stop.", s.Completed(), s.Total)
	}
	title := "Downloads finished"
	message := fmt.Sprintf("%d downloaded", s.Succeeded)
	if s.Skipped > 0 {
		message += fmt.Sprintf(", %d already present", s.Skipped)
	}
	if s.Failed > 0 {
		title = "Downloads finished with errors"
		message += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.OutputRoot != "" {
		message += "\n" + shortenPath(s.OutputRoot)
	}
	return title, message
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	vol := filepath.VolumeName(path)
	if vol != "" && len(vol)+len(short)+1 <= maxLen {
		short = vol + string(filepath.Separator) + short
	}
	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}
