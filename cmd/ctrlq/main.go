package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctrl-q/ctrlq/cmd/ctrlq/commands"
	"github.com/ctrl-q/ctrlq/logger"
)

var (
	jsonLogs   bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "ctrlq",
	Short: "Ctrl-Q - QSEoW task automation from the command line",
	Long: `Ctrl-Q manages Qlik Sense Enterprise on Windows (QSEoW) task
automation: reload and external-program tasks, schema and composite
triggers, tags, and custom properties.

Available commands:
  task-get                   - read the task graph (tree or table)
  task-import                - import tasks/triggers from a source file
  task-custom-property-set   - set a custom property on existing tasks
  server                     - serve a read-only JSON visualization of the graph
  version                    - show build information`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(verbosity, jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON log lines instead of console output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a ctrlq.toml configuration file")

	commands.ConfigFile = &configFile

	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.TaskGetCmd)
	rootCmd.AddCommand(commands.TaskImportCmd)
	rootCmd.AddCommand(commands.TaskCustomPropertySetCmd)
	rootCmd.AddCommand(commands.ServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
