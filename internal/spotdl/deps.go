package spotdl

import (
	"fmt"
	"os/exec"
	"strings"
)

// MissingDependencyError lists external tools that could not be found.
type MissingDependencyError struct {
	Tools []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %s", strings.Join(e.Tools, ", "))
}

// CheckDependencies looks up every tool on PATH (or as a direct path).
// Empty names are ignored.
func CheckDependencies(tools ...string) error {
	var missing []string
	for _, tool := range tools {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return &MissingDependencyError{Tools: missing}
	}
	return nil
}
