package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"zortoshub/internal/catalog"
	"zortoshub/internal/logger"
)

const detachTimeout = 30 * time.Second

var (
	keepMounted bool
	assumeYes   bool
)

var installCmd = &cobra.Command{
	Use:   "install <app-id>",
	Short: "Download and mount, extract or install an app from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd)
		entry, ok := a.catalog.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown app %q, see `zortoshub list`", args[0])
		}
		return a.install(cmd.Context(), entry, keepMounted, assumeYes)
	},
}

func init() {
	installCmd.Flags().BoolVar(&keepMounted, "keep-mounted", false, "Leave the disk image mounted without asking")
	installCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Reinstall without asking when the app is already present")
}

func (a *app) install(ctx context.Context, entry catalog.App, keep, yes bool) error {
	if catalog.Installed(cfg.ApplicationsDir, entry) && !yes {
		ok, err := a.prompter.Confirm(ctx, fmt.Sprintf("%s is already installed. Reinstall?", entry.Name), false)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("[INFO] Skipping %s\n", entry.Name)
			return nil
		}
	}

	titleColor.Fprintf(a.out, "Installing %s...\n\n", entry.Name)
	inst, closeHistory := newInstaller(progressPrinter(a.out))
	defer closeHistory()

	s, err := inst.Install(ctx, entry)
	if err != nil {
		return err
	}
	if s.Mount == nil {
		installedColor.Fprintf(a.out, "✨ %s is ready at %s\n", entry.Name, s.Path)
		return nil
	}

	installedColor.Fprintf(a.out, "✨ %s has been mounted! Follow the installation instructions in Finder.\n", entry.Name)
	if keep {
		s.Keep()
		return nil
	}

	// Detach on every exit path, including an interrupted prompt.
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
		defer cancel()
		if err := s.Close(dctx); err != nil {
			logger.Warn("[WARN] %v\n", err)
		}
	}()

	answer, err := a.prompter.Ask(ctx, "\nPress Enter to unmount the installer (or 'n' to keep it mounted): ")
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("[WARN] Interrupted, unmounting %s\n", s.Path)
		return nil
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	}
	if strings.EqualFold(answer, "n") {
		s.Keep()
		return nil
	}
	installedColor.Fprintf(a.out, "✨ %s installer has been unmounted.\n", entry.Name)
	return nil
}
