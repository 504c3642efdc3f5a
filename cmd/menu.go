package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"zortoshub/internal/catalog"
	"zortoshub/internal/logger"
	"zortoshub/internal/tui"
)

var menuItems = []string{"Install App", "Search Apps", "Refresh Apps", "Exit"}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu (the default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context(), newApp(cmd))
	},
}

// runMenu loops until Exit, end of input or interrupt.
func runMenu(ctx context.Context, a *app) error {
	for {
		printTitle(a.out)
		choice, err := a.choose(ctx, "Select an option", menuItems, true)
		if err != nil {
			return a.goodbye(err)
		}

		switch choice {
		case 0:
			apps := a.catalog.Sorted()
			if len(apps) == 0 {
				logger.Error("[ERROR] No apps available.\n")
				break
			}
			labels := make([]string, len(apps))
			for i, app := range apps {
				labels[i] = pickerLabel(app, catalog.Installed(cfg.ApplicationsDir, app))
			}
			if !isTerminal(a.in) {
				printApps(a.out, apps, cfg.ApplicationsDir)
			}
			n, err := a.choose(ctx, "Select an app", labels, false)
			if errors.Is(err, tui.ErrAborted) {
				continue
			}
			if err != nil {
				return a.goodbye(err)
			}
			ok, err := a.prompter.Confirm(ctx, fmt.Sprintf("Ready to install %s?", apps[n].Name), true)
			if err != nil {
				return a.goodbye(err)
			}
			if ok {
				if err := a.install(ctx, apps[n], false, false); err != nil {
					logger.Error("[ERROR] %v\n", err)
				}
			}

		case 1:
			term, err := a.prompter.Ask(ctx, "\nEnter search term: ")
			if err != nil {
				return a.goodbye(err)
			}
			a.search(term)

		case 2:
			logger.Warn("[WARN] Refreshing apps list...\n")
			a.reload()
			logger.Info("[INFO] Apps refreshed! %d apps available.\n", a.catalog.Len())

		case 3:
			return a.goodbye(nil)
		}

		if _, err := a.prompter.Ask(ctx, "\nPress Enter to continue..."); err != nil {
			return a.goodbye(err)
		}
	}
}

// choose shows a bubbletea picker on a terminal and a numbered prompt
// otherwise, printing items first when list is set. It returns a zero-based
// index.
func (a *app) choose(ctx context.Context, title string, items []string, list bool) (int, error) {
	if isTerminal(a.in) {
		return tui.Select(title, items, a.in, a.out)
	}
	if list {
		for i, item := range items {
			fmt.Fprintf(a.out, "%d. %s\n", i+1, item)
		}
	}
	for {
		answer, err := a.prompter.Ask(ctx, fmt.Sprintf("\n%s [1-%d]: ", title, len(items)))
		if err != nil {
			return -1, err
		}
		if answer == "" {
			return -1, tui.ErrAborted
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(items) {
			logger.Error("[ERROR] Invalid choice. Please try again.\n")
			continue
		}
		return n - 1, nil
	}
}

// goodbye ends the menu. Interrupts, aborts and end of input are a normal exit.
func (a *app) goodbye(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, tui.ErrAborted) {
		titleColor.Fprintln(a.out, "\nGoodbye! 👋")
		return nil
	}
	return err
}
