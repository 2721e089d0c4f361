package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/spdl/spdl/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage spdl configuration",
		Long: `Configuration management commands for spdl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one setting
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for spdl.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg := runConfigWizard(newPrompter(cmd.InOrStdin(), out), config.DefaultConfig())
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			if cfg.ProxyUser != "" {
				fmt.Fprintln(out, "  The proxy password is not stored; set SPDL_PROXY_PASSWORD or enter it when asked.")
			}
			fmt.Fprintln(out, "Check your setup with: spdl doctor")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// runConfigWizard asks for the common settings, starting from cfg.
func runConfigWizard(p *prompter, cfg *config.Config) *config.Config {
	fmt.Fprintln(p.out, "SpDL Configuration Setup")
	fmt.Fprintln(p.out, "========================")
	fmt.Fprintln(p.out)

	cfg.OutputDir = p.String("Output directory", cfg.OutputDir)
	cfg.Subfolder = p.String("Subfolder", cfg.Subfolder)
	cfg.Workers = p.Int("Concurrent downloads", cfg.Workers)
	cfg.Format = p.String("Audio format", cfg.Format)
	cfg.SpotDLPath = p.String("spotdl executable", cfg.SpotDLPath)
	cfg.DeleteEmptyDirs = p.Bool("Delete empty playlist folders", cfg.DeleteEmptyDirs)

	fmt.Fprintln(p.out)
	if p.Bool("Configure proxy?", false) {
		fmt.Fprintln(p.out, "Proxy modes: no-proxy, system, basic, ntlm")
		cfg.ProxyMode = p.String("Proxy mode", config.ProxyModeSystem)
		if cfg.ProxyMode == config.ProxyModeBasic || cfg.ProxyMode == config.ProxyModeNTLM {
			cfg.ProxyHost = p.String("Proxy host", "")
			cfg.ProxyPort = p.Int("Proxy port", 8080)
			cfg.ProxyUser = p.String("Proxy user (empty for none)", "")
		}
	}
	return cfg
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the configuration after merging the config file with
environment variables (SPDL_OUTPUT_DIR, SPDL_WORKERS, SPDL_SPOTDL_PATH, HTTPS_PROXY).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.LoadConfigCSV(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.MergeWithFlags(config.Overrides{})

			showConfig(cmd.OutOrStdout(), cfg)

			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	for _, rec := range cfg.Records() {
		value := rec[1]
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "  %-22s %s\n", rec[0], value)
	}
	if cfg.ProxyPassword != "" {
		fmt.Fprintln(w, "  proxy_password         <set>")
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change one setting in the configuration file",
		Example: `  spdl config set workers 6
  spdl config set output_dir ~/Music
  spdl config set upload_target s3://my-bucket/music`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var keys []string
			for _, rec := range config.DefaultConfig().Records() {
				keys = append(keys, rec[0])
			}
			return keys, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			cfg, err := config.LoadConfigCSV(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", args[0], err)
			}
			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out, "Create a configuration file with: spdl config init")
			}
			return nil
		},
	}
}

// redactProxy hides the password of a proxy URL.
func redactProxy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
