package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Morzio/Hair-Factory/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty preset archive",
	Long:  "Creates the archive named by --archive, the config file, or ~/.local/share/hair-factory/Presets.zip.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := archivePath
		if path == "" {
			path = cfg.Archive
		}
		if path == "" {
			path = defaultArchivePath()
		}
		if path == "" {
			return fmt.Errorf("no archive path: use --archive")
		}

		err := openArchive(path).Create(cmd.Context(), func(dbPath string) error {
			st, err := store.Open(dbPath, logger)
			if err != nil {
				return err
			}
			return st.Close()
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"archive": path})
		}
		fmt.Printf("%s created %s\n", green("✓"), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
