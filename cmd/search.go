package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"zortoshub/internal/logger"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search app names and descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd)
		a.search(strings.Join(args, " "))
		return nil
	},
}

func (a *app) search(term string) {
	found := a.catalog.Search(term)
	if len(found) == 0 {
		logger.Warn("[WARN] No apps match %q\n", term)
		return
	}
	printApps(a.out, found, cfg.ApplicationsDir)
}
