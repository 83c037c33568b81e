package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Nkennyelvis/momo-sms-data-processor-codecrafters/internal/config"
)

const defaultConfigYAML = `# momo-etl configuration. Unset keys fall back to built-in defaults;
# every key can also be set through a MOMO_* environment variable.
xml_input_path: data/raw/momo.xml
json_output_path: data/processed/dashboard.json
log_file_path: data/logs/etl.log
dead_letter_path: data/logs/dead_letter
database_path: data/db.sqlite3
rules_path: rules/categories.yaml
api_addr: ":8000"
`

func newInitCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold the data layout and default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(absDir)
		},
	}

	return cmd
}

func runInit(dir string) error {
	dirs := []string{
		filepath.Join("data", "raw"),
		filepath.Join("data", "processed"),
		filepath.Join("data", "logs"),
		filepath.Join("data", "logs", "dead_letter"),
		"rules",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	configPath := filepath.Join(dir, "momo.yaml")
	if err := writeIfAbsent(configPath, []byte(defaultConfigYAML)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	rulesPath := filepath.Join(dir, "rules", "categories.yaml")
	if err := writeIfAbsent(rulesPath, config.DefaultRulesYAML()); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	fmt.Printf("Initialized pipeline layout in %s\n", dir)
	fmt.Println("Place the SMS export at data/raw/momo.xml and run: momo-etl run --config momo.yaml")
	return nil
}

// writeIfAbsent never clobbers an existing file so init stays safe to re-run.
func writeIfAbsent(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, content, 0o644)
}
