package gui

import (
	"fmt"
	"os"
	"runtime"
)

// Run launches GUI mode. args are the process arguments; only --config/-c
// is read from them.
func Run(args []string) error {
	if err := checkDisplay(); err != nil {
		return err
	}
	return LaunchGUI(configFlag(args))
}

func checkDisplay() error {
	if runtime.GOOS != "linux" {
		return nil
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return fmt.Errorf("GUI mode requires a display (DISPLAY and WAYLAND_DISPLAY are not set); " +
			"run 'spdl download --help' for CLI mode")
	}
	return nil
}

// configFlag returns the value of --config/-c/--config=..., or "".
func configFlag(args []string) string {
	for i, arg := range args {
		switch {
		case (arg == "--config" || arg == "-c") && i+1 < len(args):
			return args[i+1]
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		}
	}
	return ""
}
