// Package cli provides the command-line interface for spdl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/version"
)

var (
	// Global flags
	cfgFile string
	logFile string
	verbose bool
	debug   bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc

	// stopHook is called on the first interrupt while a batch runs
	stopMu   sync.Mutex
	stopHook func()
)

// NewRootCmd creates the root command for CLI mode.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spdl",
		Short: "SpDL - batch front-end for the spotdl downloader",
		Long: `SpDL ` + version.Version + `
Downloads a list of tracks (CSV export) or a Spotify playlist link with
spotdl, a few tracks at a time, sorted into one folder per playlist.

CLI Mode (default):
  spdl download --csv tracks.csv
  spdl download --playlist https://open.spotify.com/playlist/...

GUI Mode (--gui flag):
  Graphical interface with progress and ETA.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
			if logFile != "" {
				logger.EnableFile(logFile)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate a shell completion script",
		Long: `Generate shell completion scripts for spdl.

QUICK TEST (current session only):
  source <(spdl completion bash)
  source <(spdl completion zsh)
  spdl completion fish | source
  spdl completion powershell | Out-String | Invoke-Expression`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	return completionCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go handleSignals(sigChan, currentStopHook, cancelFunc, os.Stderr)

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// handleSignals turns the first interrupt into a cooperative stop when a
// batch is running, and any further interrupt into a hard cancel.
func handleSignals(sigs <-chan os.Signal, stop func() func(), cancel context.CancelFunc, out io.Writer) {
	stopped := false
	for sig := range sigs {
		if fn := stop(); fn != nil && !stopped {
			stopped = true
			fmt.Fprintf(out, "\nReceived %v, finishing in-flight tracks. Press Ctrl+C again to abort.\n", sig)
			fn()
			continue
		}
		fmt.Fprintf(out, "\nReceived %v, cancelling downloads...\n", sig)
		cancel()
	}
}

func setStopHook(fn func()) {
	stopMu.Lock()
	stopHook = fn
	stopMu.Unlock()
}

func currentStopHook() func() {
	stopMu.Lock()
	defer stopMu.Unlock()
	return stopHook
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetDefaultConfigPath()
}

// loadConfig loads the config file and applies environment and flag
// overrides. A missing proxy password is prompted for on a terminal.
func loadConfig(o config.Overrides) (*config.Config, error) {
	cfg, err := config.LoadConfigCSV(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.MergeWithFlags(o)
	if err := ensureProxyPassword(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
