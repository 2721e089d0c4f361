package constants

import (
	"time"
)

// Application identity
const (
	AppName = "SpDL"
	AppID   = "com.spdl.gui"

	// DefaultOutputFolderName - subfolder created under the output directory for every run
	DefaultOutputFolderName = "Spotify Downloads"

	// DefaultPlaylistName - playlist folder used when a CSV row has no playlist column value
	DefaultPlaylistName = "Default"

	// LinkPlaylistName - playlist folder used for a single playlist-link request
	LinkPlaylistName = "Playlist"
)

// External tools
const (
	// SpotDLCommand - default name of the downloader executable looked up on PATH
	SpotDLCommand = "spotdl"

	// FFmpegCommand - spotdl needs ffmpeg for transcoding
	FFmpegCommand = "ffmpeg"

	// DefaultAudioFormat - output format passed to spotdl --format
	DefaultAudioFormat = "mp3"

	// OutputTemplate - spotdl output template, relative to the playlist folder
	OutputTemplate = "{artist} - {title}.{output-ext}"

	// SpotifyTrackURLPrefix - prefix used to turn a Spotify track ID into a query
	SpotifyTrackURLPrefix = "https://open.spotify.com/track/"
)

// Download coordination
const (
	// DownloadTimeout - per-track limit for one spotdl invocation (5 minutes)
	DownloadTimeout = 300 * time.Second

	// MaxRetries - extra attempts for a failed track before it is written to the error log
	MaxRetries = 2

	// RetryAfterSuccessCount - deferred retries are re-dispatched after this many successes
	RetryAfterSuccessCount = 5

	// DefaultWorkers - concurrent spotdl processes
	DefaultWorkers = 4

	// MaxWorkers - upper bound accepted from config/flags
	MaxWorkers = 32

	// OutputTailBytes - bytes of spotdl output kept on a failed result
	OutputTailBytes = 2048
)

// Filesystem
const (
	// MaxFilenameLength - sanitized folder names are truncated to this many runes
	MaxFilenameLength = 200

	// ErrorLogNameFormat - Go layout for ERROR_yy_mm_dd-HH-MM-SS.log
	ErrorLogNameFormat = "ERROR_06_01_02-15-04-05.log"

	// RunTimestampFormat - yy_mm_dd-HH-MM-SS, used in the completion summary
	RunTimestampFormat = "06_01_02-15-04-05"

	// StateFileName - resume archive kept in the output root
	StateFileName = ".spdl-state.csv"

	// EstimatedTrackBytes - rough size of one downloaded track for the disk-space pre-flight
	EstimatedTrackBytes = 12 * 1024 * 1024

	// DiskSpaceSafetyMargin - multiplier applied to the estimate
	DiskSpaceSafetyMargin = 1.1
)

// Event bus configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Sized for large playlists: every track emits 3-4 events and the GUI
	// drains on the main thread.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// UI refresh
const (
	// ProgressRefreshRate - mpb redraw interval
	ProgressRefreshRate = 150 * time.Millisecond

	// GUIPollInterval - how often the GUI ticker refreshes elapsed/ETA labels
	GUIPollInterval = 100 * time.Millisecond

	// GUICloseGrace - how long closing the window waits for in-flight tracks
	// before killing them
	GUICloseGrace = 10 * time.Second

	// GUIKillWait - how long to wait for killed downloads to return
	GUIKillWait = 10 * time.Second
)

// HTTP (doctor connectivity probe)
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPProbeTimeout          = 15 * time.Second

	// HTTPRetryMax - retries for a single probe request
	HTTPRetryMax = 3
)
