package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/http"
)

// IsTerminal reports whether stdin is interactive.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompter reads answers for `config init`.
type prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{reader: bufio.NewReader(in), out: out}
}

// String asks for a value, returning def on empty input.
func (p *prompter) String(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, _ := p.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// Int asks for a positive integer, returning def on empty or invalid input.
func (p *prompter) Int(label string, def int) int {
	s := p.String(label, strconv.Itoa(def))
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// Bool asks a yes/no question.
func (p *prompter) Bool(label string, def bool) bool {
	d := "y/N"
	if def {
		d = "Y/n"
	}
	s := strings.ToLower(p.String(label+" ("+d+")", ""))
	switch s {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

// ensureProxyPassword prompts for the proxy password when the configuration
// names a user but no password was given. Off a terminal it is an error.
func ensureProxyPassword(cfg *config.Config) error {
	if !http.NeedsProxyPassword(cfg) {
		return nil
	}
	if !IsTerminal() {
		return fmt.Errorf("proxy user %q has no password: set SPDL_PROXY_PASSWORD", cfg.ProxyUser)
	}
	fmt.Fprintf(os.Stderr, "Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to read proxy password: %w", err)
	}
	cfg.ProxyPassword = string(pw)
	return nil
}
