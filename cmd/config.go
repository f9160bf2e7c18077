package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Morzio/Hair-Factory/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		effective := cfg
		if archivePath != "" {
			effective.Archive = archivePath
		}
		if logLevel != "" {
			effective.LogLevel = logLevel
		}
		if jsonOutput {
			return printJSON(effective)
		}
		data, err := config.Encode(effective)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
