// spdl - batch front-end for the spotdl track downloader.
//
// - No args + display available → GUI mode
// - No args + no display → CLI help
// - --gui → GUI mode
// - --cli → CLI mode (force)
// - CLI subcommands/flags → CLI mode
package main

import (
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/spdl/spdl/internal/cli"
	"github.com/spdl/spdl/internal/gui"
)

func main() {
	if isCLIMode(os.Args, hasDisplay()) {
		os.Args = slices.DeleteFunc(os.Args, func(a string) bool { return a == "--cli" })
		if err := cli.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := gui.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isCLIMode reports whether args ask for the CLI. --cli and --gui win;
// otherwise a bare invocation opens the window when a display exists and
// anything else goes to the CLI.
func isCLIMode(args []string, display bool) bool {
	if slices.Contains(args, "--cli") {
		return true
	}
	if slices.Contains(args, "--gui") {
		return false
	}
	if len(args) <= 1 {
		return !display
	}
	if len(args) == 3 && (args[1] == "--config" || args[1] == "-c") {
		return !display
	}
	return true
}

func hasDisplay() bool {
	if runtime.GOOS != "linux" {
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
