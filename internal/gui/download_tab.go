package gui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/core"
	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/http"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/notify"
	"github.com/spdl/spdl/internal/progress"
	"github.com/spdl/spdl/internal/spotdl"
)

// Input modes offered by the mode selector.
const (
	modeCSV  = "CSV/TXT"
	modeLink = "Spotify Playlist Link"
)

// formValues is what the user entered, read on the UI thread.
type formValues struct {
	Mode        string
	CSVPath     string
	PlaylistURL string
	OutputDir   string
	Subfolder   string
	DeleteEmpty bool
}

func (v formValues) validate() error {
	switch v.Mode {
	case modeLink:
		if strings.TrimSpace(v.PlaylistURL) == "" {
			return errors.New("Enter a Spotify playlist link")
		}
	default:
		info, err := os.Stat(strings.TrimSpace(v.CSVPath))
		if err != nil || info.IsDir() {
			return errors.New("Invalid CSV/TXT path")
		}
	}
	if strings.TrimSpace(v.OutputDir) == "" {
		return errors.New("Select an output folder")
	}
	return nil
}

func (v formValues) request() core.Request {
	if v.Mode == modeLink {
		return core.Request{PlaylistURL: strings.TrimSpace(v.PlaylistURL)}
	}
	return core.Request{CSVPath: strings.TrimSpace(v.CSVPath)}
}

// apply returns a copy of cfg with the form's output settings.
func (v formValues) apply(cfg *config.Config) *config.Config {
	c := *cfg
	c.OutputDir = strings.TrimSpace(v.OutputDir)
	c.Subfolder = strings.TrimSpace(v.Subfolder)
	c.DeleteEmptyDirs = v.DeleteEmpty
	return &c
}

func progressText(completed, total int) string {
	s := progress.Snapshot{Completed: completed, Total: total}
	if total > 0 {
		s.Percent = float64(completed) / float64(total) * 100
	}
	return s.Label()
}

func currentTrackText(label string) string {
	if label == "" {
		return "Current track: None"
	}
	return "Current track: " + label
}

func etaText(eta time.Duration) string {
	if eta <= 0 {
		return "ETA: --"
	}
	return "ETA: " + progress.FormatDuration(eta)
}

// DownloadTab is the single page of the window.
type DownloadTab struct {
	engine     *core.Engine
	window     fyne.Window
	status     *StatusBar
	configPath string

	modeSelect   *widget.Select
	csvEntry     *widget.Entry
	linkEntry    *widget.Entry
	csvRow       *fyne.Container
	linkRow      *fyne.Container
	outputEntry  *widget.Entry
	subfolder    *widget.Entry
	deleteEmpty  *widget.Check
	startButton  *widget.Button
	stopButton   *widget.Button
	progressBar  *widget.ProgressBar
	progressText *widget.Label
	currentTrack *widget.Label
	etaLabel     *widget.Label

	run runControl
}

func NewDownloadTab(engine *core.Engine, window fyne.Window, status *StatusBar, configPath string) *DownloadTab {
	return &DownloadTab{
		engine:     engine,
		window:     window,
		status:     status,
		configPath: configPath,
	}
}

// Build creates the tab layout.
func (t *DownloadTab) Build() fyne.CanvasObject {
	cfg := t.engine.GetConfig()

	t.csvEntry = widget.NewEntry()
	t.csvEntry.SetPlaceHolder("Track list (.csv / .txt)")
	csvBrowse := widget.NewButtonWithIcon("Select File", theme.FileIcon(), t.pickCSV)
	t.csvRow = container.NewBorder(nil, nil, nil, csvBrowse, t.csvEntry)

	t.linkEntry = widget.NewEntry()
	t.linkEntry.SetPlaceHolder("https://open.spotify.com/playlist/...")
	t.linkRow = container.NewStack(t.linkEntry)

	t.modeSelect = widget.NewSelect([]string{modeCSV, modeLink}, t.setMode)
	t.modeSelect.SetSelected(modeCSV)

	t.outputEntry = widget.NewEntry()
	t.outputEntry.SetText(cfg.OutputDir)
	outBrowse := widget.NewButtonWithIcon("Select Folder", theme.FolderOpenIcon(), t.pickOutput)
	outRow := container.NewBorder(nil, nil, nil, outBrowse, t.outputEntry)

	t.subfolder = widget.NewEntry()
	t.subfolder.SetText(cfg.Subfolder)
	t.subfolder.SetPlaceHolder(constants.DefaultOutputFolderName)

	t.deleteEmpty = widget.NewCheck("Delete empty playlist folders after download", nil)
	t.deleteEmpty.SetChecked(cfg.DeleteEmptyDirs)

	t.startButton = widget.NewButtonWithIcon("Start Download", theme.DownloadIcon(), t.start)
	t.startButton.Importance = widget.HighImportance
	t.stopButton = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), t.stop)
	t.stopButton.Disable()

	t.progressBar = widget.NewProgressBar()
	t.progressText = widget.NewLabel(progressText(0, 0))
	t.progressText.Alignment = fyne.TextAlignCenter
	t.currentTrack = widget.NewLabel(currentTrackText(""))
	t.currentTrack.Truncation = fyne.TextTruncateEllipsis
	t.etaLabel = widget.NewLabel(etaText(0))

	form := widget.NewForm(
		widget.NewFormItem("Input", t.modeSelect),
		widget.NewFormItem("Source", container.NewStack(t.csvRow, t.linkRow)),
		widget.NewFormItem("Output folder", outRow),
		widget.NewFormItem("Subfolder", t.subfolder),
	)

	return container.NewVBox(
		form,
		t.deleteEmpty,
		container.NewCenter(container.NewHBox(t.startButton, t.stopButton)),
		widget.NewSeparator(),
		t.progressBar,
		t.progressText,
		container.NewBorder(nil, nil, nil, t.etaLabel, t.currentTrack),
	)
}

func (t *DownloadTab) setMode(mode string) {
	if t.csvRow == nil || t.linkRow == nil {
		return
	}
	if mode == modeLink {
		t.csvRow.Hide()
		t.linkRow.Show()
	} else {
		t.linkRow.Hide()
		t.csvRow.Show()
	}
}

func (t *DownloadTab) pickCSV() {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, t.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		t.csvEntry.SetText(reader.URI().Path())
	}, t.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".csv", ".txt"}))
	d.Show()
}

func (t *DownloadTab) pickOutput() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, t.window)
			return
		}
		if uri != nil {
			t.outputEntry.SetText(uri.Path())
		}
	}, t.window)
}

func (t *DownloadTab) values() formValues {
	return formValues{
		Mode:        t.modeSelect.Selected,
		CSVPath:     t.csvEntry.Text,
		PlaylistURL: t.linkEntry.Text,
		OutputDir:   t.outputEntry.Text,
		Subfolder:   t.subfolder.Text,
		DeleteEmpty: t.deleteEmpty.Checked,
	}
}

// start runs on the UI thread.
func (t *DownloadTab) start() {
	v := t.values()
	if err := v.validate(); err != nil {
		dialog.ShowError(err, t.window)
		return
	}
	cfg := v.apply(t.engine.GetConfig())
	if err := spotdl.CheckDependencies(cfg.SpotDLPath); err != nil {
		dialog.ShowError(fmt.Errorf("%w\nInstall it with: pipx install spotdl", err), t.window)
		return
	}

	if http.NeedsProxyPassword(cfg) {
		t.askProxyPassword(cfg, func() { t.launch(v, cfg) })
		return
	}
	t.launch(v, cfg)
}

func (t *DownloadTab) askProxyPassword(cfg *config.Config, then func()) {
	pw := widget.NewPasswordEntry()
	items := []*widget.FormItem{widget.NewFormItem("Password", pw)}
	title := fmt.Sprintf("Proxy password for %s@%s", cfg.ProxyUser, cfg.ProxyHost)
	dialog.ShowForm(title, "OK", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		cfg.ProxyPassword = pw.Text
		then()
	}, t.window)
}

func (t *DownloadTab) launch(v formValues, cfg *config.Config) {
	if err := t.engine.UpdateConfig(cfg); err != nil {
		dialog.ShowError(err, t.window)
		return
	}
	t.saveSettings(cfg)

	req := v.request()
	tracks, err := core.LoadTracks(req)
	if err != nil {
		dialog.ShowError(err, t.window)
		return
	}

	t.progressBar.SetValue(0)
	t.progressText.SetText(progressText(0, len(tracks)))
	t.currentTrack.SetText(currentTrackText(""))
	t.etaLabel.SetText(etaText(0))
	t.startButton.Disable()
	t.stopButton.Enable()
	t.status.SetStatus(fmt.Sprintf("Downloading %d track(s)", len(tracks)), StatusProgress)

	ctx := t.run.begin()
	go func() {
		summary, err := t.engine.Run(ctx, req)
		t.run.end()
		fyne.Do(func() { t.finish(summary, err) })
	}()
}

// saveSettings remembers the output choices for the next launch.
func (t *DownloadTab) saveSettings(cfg *config.Config) {
	if t.configPath == "" {
		return
	}
	if err := config.SaveConfigCSV(cfg, t.configPath); err != nil {
		guiLogger.Warn().Err(err).Str("path", t.configPath).Msg("Failed to save settings")
	}
}

// shutdown stops an active run when the window goes away and waits for it,
// killing spotdl if in-flight tracks outlast the grace period.
func (t *DownloadTab) shutdown() {
	if !t.run.shutdown(t.engine.Stop, constants.GUICloseGrace, constants.GUIKillWait) {
		guiLogger.Error().Msg("Download run did not exit after cancel")
	}
}

func (t *DownloadTab) stop() {
	t.stopButton.Disable()
	t.engine.Stop()
}

func (t *DownloadTab) finish(s models.Summary, err error) {
	t.startButton.Enable()
	t.stopButton.Disable()
	t.currentTrack.SetText(currentTrackText(""))
	t.etaLabel.SetText(etaText(0))

	notifier := notify.NewNotifier(t.engine.GetConfig().Notify, guiLogger)
	if err != nil {
		notifier.BatchFailed(err)
		t.status.SetStatus(err.Error(), StatusError)
		dialog.ShowError(err, t.window)
		return
	}

	switch {
	case s.Stopped:
		t.status.SetStatus("Stopped", StatusWarning)
	case s.Failed > 0:
		t.status.SetStatus(fmt.Sprintf("Finished with %d error(s), see %s", s.Failed, s.ErrorLogPath), StatusWarning)
	default:
		t.status.SetStatus("Finished", StatusSuccess)
	}
	notifier.BatchFinished(s)
	dialog.ShowInformation("All Done!", core.CompletionMessage(s), t.window)
}

// The handlers below are called from event goroutines.

func (t *DownloadTab) onProgress(ev *events.ProgressEvent) {
	fyne.Do(func() {
		t.progressBar.SetValue(ev.Progress)
		t.progressText.SetText(progressText(ev.Completed, ev.Total))
		t.etaLabel.SetText(etaText(ev.ETA))
	})
}

func (t *DownloadTab) onTrackStarted(ev *events.TrackEvent) {
	fyne.Do(func() {
		t.currentTrack.SetText(currentTrackText(ev.Label))
	})
}

func (t *DownloadTab) onStateChange(ev *events.StateChangeEvent) {
	if ev.NewState == core.StateStopping {
		t.status.SetStatus(ev.Message, StatusProgress)
		fyne.Do(func() { t.stopButton.Disable() })
	}
}

func (t *DownloadTab) onLog(ev *events.LogEvent) {
	if ev.Level < events.WarnLevel {
		return
	}
	msg := ev.Message
	if ev.Track != "" {
		msg = ev.Track + ": " + msg
	}
	t.status.SetStatus(msg, levelForLog(ev.Level))
}
