package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zortoshub/internal/config"
	"zortoshub/internal/logger"
)

var (
	// debug enables cyan [DEBUG] output, toggled by --debug.
	debug bool
	// noColor strips ANSI colors from all output.
	noColor bool
	// configFile overrides the zortoshub.yaml search path.
	configFile string

	v   = config.New()
	cfg *config.Config
)

// rootCmd is the base command. Without a subcommand it opens the menu.
var rootCmd = &cobra.Command{
	Use:           "zortoshub",
	Short:         "Your Mac App Hub",
	Long:          "ZortosHub downloads applications from a catalog and mounts, extracts or installs them.",
	SilenceUsage:  true,
	SilenceErrors: true,

	// Runs before any subcommand: logging first, then configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(debug, noColor)
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger.Debug("[DEBUG] Configuration: %+v\n", *cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context(), newApp(cmd))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default ./zortoshub.yaml or ~/.zortoshub/zortoshub.yaml)")
	flags.String("catalog", "apps.json", "Catalog file (JSON or YAML)")
	flags.String("download-dir", "", "Where installers are downloaded (default ~/Downloads/ZortosHub)")

	// An unchanged flag never overrides file or environment values.
	_ = v.BindPFlag("catalog", flags.Lookup("catalog"))
	_ = v.BindPFlag("download-dir", flags.Lookup("download-dir"))

	rootCmd.AddCommand(installCmd, listCmd, searchCmd, menuCmd, historyCmd, cleanupCmd)
}

// Execute runs the CLI and exits 1 on error. SIGINT and SIGTERM cancel the
// command context so a mounted volume is released on the way out.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

