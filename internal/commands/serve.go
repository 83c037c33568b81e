package commands

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/api"
	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the processed transactions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := opts.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			if addr != "" {
				cfg.APIAddr = addr
			}

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(); err != nil {
				return err
			}

			srv := api.New(st, log, cfg.SnapshotLimit)
			if err := srv.Serve(cmd.Context(), cfg.APIAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
