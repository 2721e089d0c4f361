// Package spotdl runs the external spotdl downloader, one process per track.
package spotdl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/logging"
)

// ErrTimeout is returned when a single spotdl invocation exceeds its timeout.
var ErrTimeout = errors.New("spotdl timed out")

// Request describes one download.
type Request struct {
	Query     string // track URL, "artist - title" search or playlist link
	OutputDir string // playlist folder; created by the caller
}

// Result is what a finished process reported.
type Result struct {
	Output   string // tail of combined stdout/stderr
	ExitCode int
	Duration time.Duration
}

// Runner downloads one request. Implementations must honour ctx cancellation.
type Runner interface {
	Download(ctx context.Context, req Request) (Result, error)
}

// ExitError reports a non-zero exit status.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	if line := lastLine(e.Output); line != "" {
		return fmt.Sprintf("spotdl exited with code %d: %s", e.Code, line)
	}
	return fmt.Sprintf("spotdl exited with code %d", e.Code)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// ExecRunner runs spotdl as a subprocess.
type ExecRunner struct {
	Path           string        // executable, defaults to "spotdl"
	Format         string        // --format value, defaults to mp3
	OutputTemplate string        // file name template inside the playlist folder
	Timeout        time.Duration // per invocation, defaults to 300s
	Proxy          string        // passed as --proxy when set
	ExtraArgs      []string
	Logger         *logging.Logger
}

// NewExecRunner returns a runner with the default settings.
func NewExecRunner(path string) *ExecRunner {
	return &ExecRunner{
		Path:           path,
		Format:         constants.DefaultAudioFormat,
		OutputTemplate: constants.OutputTemplate,
		Timeout:        constants.DownloadTimeout,
	}
}

// Args builds the spotdl argument list for req.
func (r *ExecRunner) Args(req Request) []string {
	format := r.Format
	if format == "" {
		format = constants.DefaultAudioFormat
	}
	tmpl := r.OutputTemplate
	if tmpl == "" {
		tmpl = constants.OutputTemplate
	}

	args := []string{
		"--output", filepath.Join(req.OutputDir, tmpl),
		"--format", format,
	}
	if r.Proxy != "" {
		args = append(args, "--proxy", r.Proxy)
	}
	args = append(args, r.ExtraArgs...)
	return append(args, req.Query)
}

// Download runs spotdl for req. A parent cancellation returns ctx.Err();
// hitting the per-track timeout returns ErrTimeout; a non-zero exit returns
// *ExitError. The output tail is returned in every case.
func (r *ExecRunner) Download(ctx context.Context, req Request) (Result, error) {
	path := r.Path
	if path == "" {
		path = constants.SpotDLCommand
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = constants.DownloadTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := r.Args(req)
	cmd := exec.CommandContext(runCtx, path, args...)
	prepareCommand(cmd)

	out := newTailBuffer(constants.OutputTailBytes)
	cmd.Stdout = out
	cmd.Stderr = out

	if r.Logger != nil {
		r.Logger.Debug().Str("cmd", path).Strs("args", args).Msg("starting spotdl")
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ExitError{Code: exitErr.ExitCode(), Output: res.Output}
	}
	return res, fmt.Errorf("failed to run %s: %w", path, err)
}

// Version returns the output of `spotdl --version`.
func Version(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = constants.SpotDLCommand
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	prepareCommand(cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to query %s version: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}
