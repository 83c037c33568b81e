package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var outputPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard snapshot from the current store contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := opts.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			if outputPath != "" {
				cfg.JSONOutputPath = outputPath
			}
			if limit <= 0 {
				limit = cfg.SnapshotLimit
			}

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(); err != nil {
				return err
			}

			snap, err := st.ExportSnapshot(cfg.JSONOutputPath, limit)
			if err != nil {
				return err
			}

			fmt.Printf("Snapshot written to %s (%d transactions)\n",
				cfg.JSONOutputPath, len(snap.Transactions))
			return nil
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "override the snapshot path")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum transactions in the snapshot")

	return cmd
}
