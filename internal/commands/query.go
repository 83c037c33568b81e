package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/store"
)

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var category string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List processed transactions from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := opts.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(); err != nil {
				return err
			}

			txs, err := st.Query(store.Filter{Category: category, Status: status, Limit: limit})
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Println("No transactions found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tPHONE\tAMOUNT\tCATEGORY\tSTATUS")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					tx.ID, tx.Date.Format(time.DateOnly), tx.Phone,
					tx.Amount.StringFixed(2), tx.Category, tx.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to list")

	return cmd
}
