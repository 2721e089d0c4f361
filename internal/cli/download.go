package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/core"
	"github.com/spdl/spdl/internal/download"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/notify"
	"github.com/spdl/spdl/internal/progress"
	"github.com/spdl/spdl/internal/spotdl"
)

// downloadFlags holds the values of `spdl download`.
type downloadFlags struct {
	csvPath       string
	playlist      string
	outputDir     string
	subfolder     string
	workers       int
	format        string
	timeout       time.Duration
	retries       int
	keepEmptyDirs bool
	skipCompleted bool
	stateFile     string
	failedCSV     string
	spotdlPath    string
	uploadTarget  string
	launchRate    float64
	notify        bool
	simple        bool
	strict        bool
}

func newDownloadCmd() *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a track list or a playlist",
		Long: `Download every track of a CSV export, or a whole playlist link, with spotdl.

Tracks are saved as <output>/<subfolder>/<playlist>/<artist> - <title>.mp3.
Failed tracks are retried after a few other tracks have succeeded; tracks
that still fail are listed in an ERROR_<timestamp>.log in the output folder.

Press Ctrl+C once to finish the tracks in flight and stop, twice to abort.

Examples:
  spdl download --csv liked.csv
  spdl download --playlist https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M --workers 2
  spdl download --csv liked.csv --skip-completed --failed-csv retry.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.csvPath, "csv", "", "Track list CSV (Track name, Artist name, Playlist name, Spotify - id)")
	flags.StringVar(&f.playlist, "playlist", "", "Spotify playlist link")
	flags.StringVarP(&f.outputDir, "output", "o", "", "Output directory")
	flags.StringVar(&f.subfolder, "subfolder", "", "Folder created inside the output directory (default \"Spotify Downloads\")")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Concurrent spotdl processes (1-32)")
	flags.StringVar(&f.format, "format", "", "Audio format passed to spotdl (mp3, m4a, flac, opus, ogg, wav)")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-track time limit (default 5m0s)")
	flags.IntVar(&f.retries, "retries", 0, "Extra attempts for a failed track")
	flags.BoolVar(&f.keepEmptyDirs, "keep-empty-dirs", false, "Keep playlist folders that ended up empty")
	flags.BoolVar(&f.skipCompleted, "skip-completed", false, "Skip tracks downloaded by a previous run")
	flags.StringVar(&f.stateFile, "state-file", "", "Resume archive (default <output>/.spdl-state.csv)")
	flags.StringVar(&f.failedCSV, "failed-csv", "", "Write failed tracks to this CSV for a later retry")
	flags.StringVar(&f.spotdlPath, "spotdl", "", "Path to the spotdl executable")
	flags.StringVar(&f.uploadTarget, "upload", "", "Publish downloaded folders to s3://bucket/prefix or azblob://...")
	flags.Float64Var(&f.launchRate, "launch-rate", 0, "Max spotdl starts per second across workers (0 = unlimited)")
	flags.BoolVar(&f.notify, "notify", false, "Desktop notification when the batch finishes")
	flags.BoolVar(&f.simple, "simple", false, "Single progress bar instead of per-track spinners")
	flags.BoolVar(&f.strict, "strict", false, "Exit non-zero when any track failed")

	cmd.MarkFlagsMutuallyExclusive("csv", "playlist")
	cmd.MarkFlagsOneRequired("csv", "playlist")
	_ = cmd.MarkFlagFilename("csv", "csv", "txt")
	_ = cmd.MarkFlagDirname("output")

	return cmd
}

// overrides converts the flags into config overrides. changed reports
// whether a flag was given explicitly.
func (f downloadFlags) overrides(changed func(string) bool) config.Overrides {
	o := config.Overrides{
		Workers:      f.workers,
		OutputDir:    f.outputDir,
		Subfolder:    f.subfolder,
		SpotDLPath:   f.spotdlPath,
		Format:       f.format,
		Timeout:      f.timeout,
		StateFile:    f.stateFile,
		UploadTarget: f.uploadTarget,
		LaunchRate:   f.launchRate,
	}
	if f.notify {
		on := true
		o.Notify = &on
	}
	if changed("retries") {
		retries := f.retries
		o.MaxRetries = &retries
	}
	if f.keepEmptyDirs {
		deleteEmpty := false
		o.DeleteEmptyDirs = &deleteEmpty
	}
	if f.skipCompleted || f.stateFile != "" {
		skip := true
		o.SkipCompleted = &skip
	}
	return o
}

func runDownload(cmd *cobra.Command, f downloadFlags) error {
	cfg, err := loadConfig(f.overrides(cmd.Flags().Changed))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	req := core.Request{
		CSVPath:     f.csvPath,
		PlaylistURL: f.playlist,
		FailedCSV:   f.failedCSV,
	}
	tracks, err := core.LoadTracks(req)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tracks found in the track list.")
		return nil
	}

	if err := spotdl.CheckDependencies(cfg.SpotDLPath); err != nil {
		return fmt.Errorf("%w (install it with `pip install spotdl` or set --spotdl)", err)
	}
	if err := spotdl.CheckDependencies(cfg.FFmpegPath); err != nil {
		GetLogger().Warn().Err(err).Msg("ffmpeg not found; spotdl may fail to convert audio")
	}

	log := GetLogger()
	engine := core.NewEngine(cfg, nil, log)

	observer, finish := newDownloadObserver(f.simple, len(tracks))
	req.Observer = observer
	req.Reporter = progress.NewCLIProgress()
	if bui, ok := observer.(*progress.BatchUI); ok && bui.IsTerminal() {
		// Route log lines above the bars
		prev := log.Output()
		log.SetOutput(bui.Writer())
		defer log.SetOutput(prev)
	}

	log.Info().
		Int("tracks", len(tracks)).
		Int("workers", cfg.Workers).
		Str("output", core.OutputRoot(cfg)).
		Msg("Starting downloads")

	notifier := notify.NewNotifier(cfg.Notify, log)

	setStopHook(engine.Stop)
	summary, err := engine.Run(GetContext(), req)
	setStopHook(nil)
	finish()
	if err != nil {
		notifier.BatchFailed(err)
		return err
	}
	notifier.BatchFinished(summary)

	printSummary(cmd.OutOrStdout(), summary)

	if GetContext().Err() != nil {
		return fmt.Errorf("download aborted")
	}
	if f.strict && summary.Failed > 0 {
		return fmt.Errorf("%d of %d tracks failed", summary.Failed, summary.Total)
	}
	return nil
}

// newDownloadObserver picks the terminal renderer. The returned func must be
// called once the batch is over.
func newDownloadObserver(simple bool, total int) (download.Observer, func()) {
	if simple {
		obs := progress.NewReporterObserver(progress.NewCLIProgress(), total)
		return obs, obs.Finish
	}
	ui := progress.NewBatchUI(total)
	return ui, ui.Wait
}

func printSummary(w io.Writer, s models.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, core.CompletionMessage(s))
	for _, line := range core.SummaryLines(s) {
		fmt.Fprintln(w, "  "+line)
	}
}
