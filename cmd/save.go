package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/preset"
)

var (
	saveName    string
	saveAddress string
)

var saveCmd = &cobra.Command{
	Use:   "save <type> <file>",
	Short: "Save a graph, stack, node, settings or hair file as a preset",
	Long: `Saves the description in <file> under --name. <type> is one of material,
geometry, stack, node, cloth, soft_body, collision or hair. Node presets read
the special node at --address of a graph file.

Saving content that is already stored does nothing and reports the stored
name; a name already used by different content is an error.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := preset.ParseType(args[0])
		if err != nil {
			return err
		}
		if err := preset.ValidateName(saveName); err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		return withProcessor(cmd.Context(), true, func(p *preset.Processor) error {
			if c, ok := t.Class(); ok {
				g, err := graph.Parse(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				res, err := p.SaveGraph(c, g, saveName)
				if err != nil {
					return err
				}
				return printResult("saved", res)
			}

			switch t {
			case preset.TypeStack:
				st, err := graph.ParseStack(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				res, members, err := p.SaveStack(st, saveName)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(map[string]any{"stack": res, "members": members})
				}
				for _, m := range members {
					fmt.Printf("    %s %q (%s)\n", m.Type, m.Name, m.ID.Short())
				}
				return printResult("saved", res)

			case preset.TypeNode:
				if saveAddress == "" {
					return fmt.Errorf("node presets need --address")
				}
				addr, err := graph.ParseAddress(saveAddress)
				if err != nil {
					return err
				}
				g, err := graph.Parse(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				res, err := p.SaveNode(g, addr, saveName)
				if err != nil {
					return err
				}
				return printResult("saved", res)

			case preset.TypeHair:
				points, sizes, err := parseHair(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[1], err)
				}
				res, err := p.SaveHair(points, sizes, saveName)
				if err != nil {
					return err
				}
				return printResult("saved", res)
			}

			settings, err := graph.ParseSettings(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			res, err := p.SaveSettings(t, settings, saveName)
			if err != nil {
				return err
			}
			return printResult("saved", res)
		})
	},
}

// hairFile is the on-disk form of a hair point cloud.
type hairFile struct {
	Points [][3]float32 `yaml:"points"`
	Sizes  []int        `yaml:"sizes"`
}

func parseHair(data []byte) ([][3]float32, []int, error) {
	var h hairFile
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, nil, err
	}
	if len(h.Points) == 0 {
		return nil, nil, fmt.Errorf("hair file has no points")
	}
	return h.Points, h.Sizes, nil
}

func init() {
	saveCmd.Flags().StringVar(&saveName, "name", "", "Preset name (required)")
	saveCmd.Flags().StringVar(&saveAddress, "address", "", "Node address for node presets, e.g. 3.1")
	_ = saveCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(saveCmd)
}
