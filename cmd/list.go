package cmd

import (
	"github.com/spf13/cobra"

	"zortoshub/internal/logger"
)

var listCategory string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog apps by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cmd)
		apps := a.catalog.Sorted()
		if listCategory != "" {
			apps = a.catalog.InCategory(listCategory)
		}
		if len(apps) == 0 {
			logger.Warn("[WARN] No apps available.\n")
			return nil
		}
		printApps(a.out, apps, cfg.ApplicationsDir)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listCategory, "category", "", "Only list apps in this category")
}
