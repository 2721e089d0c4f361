package core

import (
	"fmt"
	"strings"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/progress"
)

// CompletionMessage is the text of the completion dialog and the CLI
// summary headline:
//
//	Downloads finished.
//	Errors: 2
//	Time: 25_03_07-14-05-09 - 25_03_07-14-20-41
func CompletionMessage(s models.Summary) string {
	var b strings.Builder
	if s.Stopped {
		b.WriteString("Downloads stopped.\n")
	} else {
		b.WriteString("Downloads finished.\n")
	}
	fmt.Fprintf(&b, "Errors: %d\n", s.Errors())
	fmt.Fprintf(&b, "Time: %s - %s",
		s.StartedAt.Format(constants.RunTimestampFormat),
		s.FinishedAt.Format(constants.RunTimestampFormat))
	return b.String()
}

// SummaryLines is the detailed breakdown printed after CompletionMessage.
func SummaryLines(s models.Summary) []string {
	lines := []string{
		fmt.Sprintf("Succeeded: %d", s.Succeeded),
		fmt.Sprintf("Failed:    %d", s.Failed),
	}
	if s.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("Skipped:   %d (already downloaded)", s.Skipped))
	}
	if s.Cancelled > 0 {
		lines = append(lines, fmt.Sprintf("Cancelled: %d", s.Cancelled))
	}
	lines = append(lines,
		fmt.Sprintf("Duration:  %s", progress.FormatDuration(s.Duration())),
		fmt.Sprintf("Output:    %s", s.OutputRoot),
	)
	if s.ErrorLogPath != "" {
		lines = append(lines, fmt.Sprintf("Error log: %s", s.ErrorLogPath))
	}
	return lines
}
