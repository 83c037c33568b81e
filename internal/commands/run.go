package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/pipeline"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var xmlPath string
	var outputPath string
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline against the configured XML input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := opts.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			if xmlPath != "" {
				cfg.XMLInputPath = xmlPath
			}
			if outputPath != "" {
				cfg.JSONOutputPath = outputPath
			}
			if rulesPath != "" {
				cfg.RulesPath = rulesPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			result, err := pipeline.New(cfg, log).Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run %s: %w", result.RunID, err)
			}

			fmt.Printf("Run %s completed in %s\n", result.RunID, result.Duration.Round(time.Millisecond))
			fmt.Printf("  extracted: %d\n", result.Extracted)
			fmt.Printf("  loaded:    %d\n", result.Loaded)
			fmt.Printf("  rejected:  %d\n", result.Rejected)
			if result.ErrorsPath != "" {
				fmt.Printf("  validation errors written to %s\n", result.ErrorsPath)
			}
			fmt.Printf("  snapshot:  %s\n", result.SnapshotPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&xmlPath, "xml", "", "override the XML input path")
	cmd.Flags().StringVar(&outputPath, "output", "", "override the dashboard snapshot path")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "override the category rules file")

	return cmd
}
