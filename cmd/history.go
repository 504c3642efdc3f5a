package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zortoshub/internal/history"
	"zortoshub/internal/logger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent installs",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := history.NewRepository(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer repo.Close()

		entries, err := repo.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			logger.Info("[INFO] No installs recorded yet.\n")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tAPP\tSTATUS\tSIZE\tDETAIL")
		for _, e := range entries {
			detail := e.MountPath
			if e.Status == history.StatusFailed {
				detail = e.ErrorMessage
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.InstalledAt.Local().Format("2006-01-02 15:04"), e.AppID, statusText(e.Status), humanBytes(e.Bytes), detail)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 for all)")
}

func statusText(s string) string {
	if s == history.StatusFailed {
		return color.RedString(s)
	}
	return color.GreenString(s)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
