package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/preset"
	"github.com/Morzio/Hair-Factory/internal/store"
)

var (
	listSearch string
	listKind   string
)

var renameCmd = &cobra.Command{
	Use:   "rename <type> <ref> <new-name>",
	Short: "Change the display name of a preset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := preset.ParseType(args[0])
		if err != nil {
			return err
		}
		return withProcessor(cmd.Context(), true, func(p *preset.Processor) error {
			ref, err := ResolvePreset(p, t, args[1])
			if err != nil {
				return err
			}
			old, err := p.Rename(t, ref.ID, args[2])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{"id": ref.ID, "old": old, "new": args[2]})
			}
			fmt.Printf("%s renamed %s %q to %q\n", green("✓"), t, old, args[2])
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List stored presets in the order they were saved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := preset.ParseType(args[0])
		if err != nil {
			return err
		}
		return withProcessor(cmd.Context(), false, func(p *preset.Processor) error {
			var entries []store.Entry
			switch {
			case t == preset.TypeNode && listKind != "":
				entries, err = p.NodeNames(listKind, listSearch)
			case listSearch != "":
				entries, err = p.Search(t, listSearch)
			default:
				entries, err = p.List(t)
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				if entries == nil {
					entries = []store.Entry{}
				}
				return printJSON(entries)
			}
			printEntries(entries)
			return nil
		})
	},
}

var linksCmd = &cobra.Command{
	Use:   "links <material|geometry> <ref>",
	Short: "List every preset and values record sharing a preset's graph topology",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := graph.ParseClass(args[0])
		if err != nil {
			return err
		}
		return withProcessor(cmd.Context(), false, func(p *preset.Processor) error {
			ref, err := ResolvePreset(p, preset.TypeOf(c), args[1])
			if err != nil {
				return err
			}
			tx, err := p.ResolveGraph(c, ref.ID)
			if err != nil {
				return err
			}
			info, err := p.GraphInfo(c, tx.Graph)
			if err != nil {
				return err
			}
			presets, err := p.PresetsForGraph(c, tx.Graph)
			if err != nil {
				return err
			}
			values, err := p.ValuesForGraph(c, tx.Graph)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(map[string]any{
					"graph":   tx.Graph,
					"info":    info,
					"presets": presets,
					"values":  values,
				})
			}
			fmt.Printf("\n  Graph %s  %s (owner %s)\n", tx.Graph.Short(), info.Name, info.Owner)
			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Presets (%d):\n", len(presets))
			printEntries(presets)
			fmt.Printf("  Values (%d):\n", len(values))
			printEntries(values)
			fmt.Println()
			return nil
		})
	},
}

func printEntries(entries []store.Entry) {
	if len(entries) == 0 {
		fmt.Println("    (none)")
		return
	}
	for _, e := range entries {
		fmt.Printf("    %s  %s\n", e.ID.Short(), e.Name)
	}
}

func init() {
	listCmd.Flags().StringVar(&listSearch, "search", "", "Only names containing this text")
	listCmd.Flags().StringVar(&listKind, "kind", "", "Node kind for node presets, e.g. VALTORGB")
	rootCmd.AddCommand(renameCmd, listCmd, linksCmd)
}
