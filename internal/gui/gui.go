// Package gui provides the desktop window for spdl.
package gui

import (
	"context"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/core"
	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/logging"
)

var (
	// guiLogger is the package-level logger for GUI mode
	guiLogger = logging.NewNopLogger()
)

// LaunchGUI opens the main window and blocks until it is closed.
func LaunchGUI(configFile string) error {
	guiLogger = logging.NewLogger("gui")
	defer guiLogger.Close()

	// Quiet console unless SPDL_DEBUG is set
	if os.Getenv("SPDL_DEBUG") != "" {
		logging.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		logging.SetGlobalLevel(zerolog.WarnLevel)
	}

	path := configFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfigCSV(path)
	if err != nil {
		guiLogger.Warn().Err(err).Str("path", path).Msg("Failed to load config, using defaults")
		cfg = config.DefaultConfig()
	}
	cfg.MergeWithFlags(config.Overrides{})
	if cfg.LogFile != "" {
		guiLogger.EnableFile(cfg.LogFile)
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	defer bus.Close()
	engine := core.NewEngine(cfg, bus, guiLogger)

	myApp := app.NewWithID(constants.AppID)
	myApp.Settings().SetTheme(&spdlTheme{})

	mainWindow := myApp.NewWindow(constants.AppName)
	mainWindow.SetMaster()

	ui := NewUI(engine, mainWindow, path)
	ui.Start()

	mainWindow.SetContent(ui.Build())
	mainWindow.Resize(fyne.NewSize(720, 420))
	mainWindow.CenterOnScreen()
	mainWindow.SetCloseIntercept(ui.confirmClose)

	mainWindow.ShowAndRun()
	ui.Stop()
	return nil
}

// UI represents the main user interface
type UI struct {
	engine   *core.Engine
	window   fyne.Window
	status   *StatusBar
	download *DownloadTab
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewUI(engine *core.Engine, window fyne.Window, configPath string) *UI {
	ctx, cancel := context.WithCancel(context.Background())
	status := NewStatusBar()
	return &UI{
		engine:   engine,
		window:   window,
		status:   status,
		download: NewDownloadTab(engine, window, status, configPath),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Build creates the window content.
func (ui *UI) Build() fyne.CanvasObject {
	title := widget.NewLabelWithStyle(constants.AppName, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	title.SizeName = theme.SizeNameHeadingText
	return container.NewBorder(
		title,
		container.NewVBox(widget.NewSeparator(), ui.status),
		nil, nil,
		container.NewPadded(ui.download.Build()),
	)
}

// Start begins event monitoring
func (ui *UI) Start() {
	go ui.monitorEvents()
}

// Stop ends event monitoring and settles a running batch: in-flight tracks
// get a grace period, then their spotdl processes are killed. Post-run steps
// (cleanup, resume archive, failed CSV) still run before Stop returns.
func (ui *UI) Stop() {
	ui.cancel()
	ui.download.shutdown()
}

func (ui *UI) confirmClose() {
	if !ui.engine.Running() {
		ui.window.Close()
		return
	}
	dialog.ShowConfirm("Quit", "Exit SPOTDL GUI?", func(ok bool) {
		if !ok {
			return
		}
		ui.engine.Stop()
		ui.window.Close()
	}, ui.window)
}

// monitorEvents feeds engine events into the download tab. The handlers
// apply widget changes through fyne.Do.
func (ui *UI) monitorEvents() {
	bus := ui.engine.Events()
	progressCh := bus.Subscribe(events.EventProgress)
	startedCh := bus.Subscribe(events.EventTrackStarted)
	stateCh := bus.Subscribe(events.EventStateChange)
	logCh := bus.Subscribe(events.EventLog)
	defer func() {
		bus.Unsubscribe(events.EventProgress, progressCh)
		bus.Unsubscribe(events.EventTrackStarted, startedCh)
		bus.Unsubscribe(events.EventStateChange, stateCh)
		bus.Unsubscribe(events.EventLog, logCh)
	}()

	for {
		select {
		case ev, ok := <-progressCh:
			if !ok {
				return
			}
			ui.download.onProgress(ev.(*events.ProgressEvent))
		case ev, ok := <-startedCh:
			if !ok {
				return
			}
			ui.download.onTrackStarted(ev.(*events.TrackEvent))
		case ev, ok := <-stateCh:
			if !ok {
				return
			}
			ui.download.onStateChange(ev.(*events.StateChangeEvent))
		case ev, ok := <-logCh:
			if !ok {
				return
			}
			ui.download.onLog(ev.(*events.LogEvent))
		case <-ui.ctx.Done():
			return
		}
	}
}
