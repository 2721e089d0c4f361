package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/core"
	"github.com/spdl/spdl/internal/diskspace"
	"github.com/spdl/spdl/internal/http"
	"github.com/spdl/spdl/internal/spotdl"
)

// probeURLs are the hosts spotdl talks to.
var probeURLs = []string{
	"https://open.spotify.com",
	"https://api.spotify.com",
	"https://music.youtube.com",
}

func newDoctorCmd() *cobra.Command {
	var skipNetwork bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that spotdl, ffmpeg and the network are usable",
		Long: `Checks the external tools, the output folder and connectivity to the
services spotdl uses (through the configured proxy).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Overrides{})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(GetContext(), 2*time.Minute)
			defer cancel()

			failures := runDoctor(ctx, cmd.OutOrStdout(), cfg, !skipNetwork)
			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipNetwork, "offline", false, "Skip the connectivity probe")
	return cmd
}

// runDoctor prints one line per check and returns the number of failures.
func runDoctor(ctx context.Context, w io.Writer, cfg *config.Config, network bool) int {
	failures := 0
	check := func(ok bool, name, detail string) {
		mark := "✓"
		if !ok {
			mark = "✗"
			failures++
		}
		fmt.Fprintf(w, "%s %-12s %s\n", mark, name, detail)
	}

	if err := spotdl.CheckDependencies(cfg.SpotDLPath); err != nil {
		check(false, "spotdl", err.Error())
	} else if v, err := spotdl.Version(ctx, cfg.SpotDLPath); err != nil {
		check(false, "spotdl", err.Error())
	} else {
		check(true, "spotdl", v)
	}

	if err := spotdl.CheckDependencies(cfg.FFmpegPath); err != nil {
		check(false, "ffmpeg", err.Error())
	} else {
		check(true, "ffmpeg", cfg.FFmpegPath)
	}

	root := core.OutputRoot(cfg)
	if free := diskspace.GetAvailableSpace(root); free > 0 {
		tracks := free / constants.EstimatedTrackBytes
		check(true, "disk", fmt.Sprintf("%s: %.1f GB free (~%d tracks)", root, float64(free)/(1<<30), tracks))
	} else {
		check(true, "disk", fmt.Sprintf("%s: free space unknown", root))
	}

	if err := cfg.Validate(); err != nil {
		check(false, "config", err.Error())
	} else {
		check(true, "config", configPath())
	}

	if !network {
		return failures
	}

	proxy, err := http.ProxyURLFor(cfg, probeURLs[0])
	if err != nil {
		check(false, "proxy", err.Error())
		return failures
	}
	if proxy == "" {
		check(true, "proxy", "direct connection")
	} else {
		check(true, "proxy", redactProxy(proxy))
	}

	client, err := http.NewRetryClient(cfg, GetLogger())
	if err != nil {
		check(false, "network", err.Error())
		return failures
	}
	for _, res := range http.Probe(ctx, client, probeURLs) {
		if res.OK() {
			check(true, "network", fmt.Sprintf("%s (%d, %s)", res.URL, res.Status, res.Latency.Round(time.Millisecond)))
		} else {
			check(false, "network", fmt.Sprintf("%s: %v", res.URL, res.Err))
		}
	}
	return failures
}
