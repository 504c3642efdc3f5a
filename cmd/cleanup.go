package cmd

import (
	"github.com/spf13/cobra"

	"zortoshub/internal/logger"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Detach disk images left mounted by earlier runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, closeHistory := newInstaller(nil)
		defer closeHistory()

		n, err := inst.Cleanup(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("[INFO] Released %d mount(s)\n", n)
		return nil
	},
}
