package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"zortoshub/internal/catalog"
	"zortoshub/internal/download"
	"zortoshub/internal/history"
	"zortoshub/internal/installer"
	"zortoshub/internal/logger"
	"zortoshub/internal/mount"
	"zortoshub/internal/tui"
)

// app bundles what every command needs for one run.
type app struct {
	catalog  *catalog.Catalog
	prompter *tui.Prompter
	in       io.Reader
	out      io.Writer
}

func newApp(cmd *cobra.Command) *app {
	a := &app{
		prompter: tui.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		in:       cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
	}
	a.reload()
	return a
}

// reload reads the catalog again. A broken catalog degrades to an empty one.
func (a *app) reload() {
	c, err := catalog.Load(cfg.Catalog)
	if err != nil {
		logger.Error("[ERROR] Error loading apps: %v\n", err)
		c = catalog.Empty()
	}
	logger.Debug("[DEBUG] Loaded %d apps from %s\n", c.Len(), cfg.Catalog)
	a.catalog = c
}

// unavailableRunner stands in for hdiutil on systems without it, so only
// disk image installs fail.
type unavailableRunner struct {
	err error
}

func (r unavailableRunner) Run(context.Context, ...string) (string, int, error) {
	return "", -1, r.err
}

func newMounter() *mount.Mounter {
	var runner mount.Runner
	hdiutil, err := mount.NewHdiutil()
	if err != nil {
		logger.Debug("[DEBUG] %v\n", err)
		runner = unavailableRunner{err: err}
	} else {
		runner = hdiutil
	}
	return mount.New(runner, mount.Config{
		MaxAttempts:    cfg.MountAttempts,
		BusyRetryDelay: cfg.BusyRetryDelay,
		SettleDelay:    cfg.SettleDelay,
		MountRoot:      cfg.MountRoot,
	})
}

// newInstaller wires the downloader, mounter and history store.
// The returned func closes the history database.
func newInstaller(onProgress download.ProgressFunc) (*installer.Installer, func()) {
	d := download.New(download.Config{
		ChunkSize:         cfg.ChunkSize,
		ProgressStep:      cfg.ProgressStep,
		MaxAttempts:       cfg.DownloadAttempts,
		RetryDelay:        cfg.DownloadRetryDelay,
		InactivityTimeout: cfg.InactivityTimeout,
		UserAgent:         "zortoshub",
		S3Region:          cfg.S3Region,
	})

	opts := installer.Options{
		DownloadDir:     cfg.DownloadDir,
		ApplicationsDir: cfg.ApplicationsDir,
		StateFile:       cfg.StateFile,
		Reveal:          true,
		OnProgress:      onProgress,
	}

	var extra []installer.Option
	closer := func() {}
	if repo, err := history.NewRepository(cfg.HistoryDB); err != nil {
		logger.Warn("[WARN] Install history disabled: %v\n", err)
	} else {
		extra = append(extra, installer.WithHistory(repo))
		closer = func() { repo.Close() }
	}
	return installer.New(opts, d, newMounter(), extra...), closer
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
