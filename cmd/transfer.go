package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Morzio/Hair-Factory/internal/preset"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <type> <ref>",
	Short: "Write a preset and everything it depends on as a JSON document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := preset.ParseType(args[0])
		if err != nil {
			return err
		}
		return withProcessor(cmd.Context(), false, func(p *preset.Processor) error {
			ref, err := ResolvePreset(p, t, args[1])
			if err != nil {
				return err
			}
			doc, err := p.Export(t, ref.ID)
			if err != nil {
				return err
			}
			data, err := doc.Encode()
			if err != nil {
				return err
			}
			if err := writeOutput(exportOutput, append(data, '\n')); err != nil {
				return err
			}
			if exportOutput != "" && exportOutput != "-" {
				fmt.Fprintf(os.Stderr, "%s exported %s %q to %s\n", green("✓"), t, ref.Name, exportOutput)
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store every record of an export document",
	Long: `Imports a document written by export. Every digest is recomputed and must
match the ids the document claims. A top-level name already used by other
content gets a numeric suffix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withProcessor(cmd.Context(), true, func(p *preset.Processor) error {
			res, err := p.Import(raw)
			if err != nil {
				return err
			}
			return printResult("imported", res)
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write the document to this file")
	rootCmd.AddCommand(exportCmd, importCmd)
}
