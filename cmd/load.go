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
	loadValuesOnly bool
	loadOutput     string
	loadAddress    string
)

var loadCmd = &cobra.Command{
	Use:   "load <type> <ref> [file]",
	Short: "Apply a preset to a graph file, or print a stored preset",
	Long: `Graph presets are applied to the graph in [file]; the updated graph is
written to -o (default stdout). Without --values-only the graph must still
have the topology the preset was saved from. Stack presets rebuild every
layer of the stack file by label. Node presets are applied to the node at
--address. Settings and hair presets are printed.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := preset.ParseType(args[0])
		if err != nil {
			return err
		}
		var data []byte
		if len(args) == 3 {
			if data, err = os.ReadFile(args[2]); err != nil {
				return err
			}
		}
		needsFile := t == preset.TypeStack || t == preset.TypeNode
		if _, ok := t.Class(); ok || needsFile {
			if data == nil {
				return fmt.Errorf("loading a %s preset needs a file to apply it to", t)
			}
		}

		return withProcessor(cmd.Context(), false, func(p *preset.Processor) error {
			ref, err := ResolvePreset(p, t, args[1])
			if err != nil {
				return err
			}

			if c, ok := t.Class(); ok {
				g, err := graph.Parse(data)
				if err != nil {
					return err
				}
				mode := preset.LoadFull
				if loadValuesOnly {
					mode = preset.LoadValues
				}
				report, err := p.LoadGraph(c, ref.ID, g, mode)
				if err != nil {
					return err
				}
				for _, s := range report.Skipped {
					fmt.Fprintf(os.Stderr, "%s skipped %s\n", yellow("!"), s)
				}
				return emit(g)
			}

			switch t {
			case preset.TypeStack:
				st, err := graph.ParseStack(data)
				if err != nil {
					return err
				}
				layers, err := p.LoadStack(ref.ID, stackResolver(st))
				if err != nil {
					return err
				}
				out := &graph.Stack{}
				for _, l := range layers {
					out.Layers = append(out.Layers, graph.Layer{Label: l.Label, Graph: l.Graph})
				}
				return emit(out)

			case preset.TypeNode:
				g, err := graph.Parse(data)
				if err != nil {
					return err
				}
				addr, err := graph.ParseAddress(loadAddress)
				if err != nil {
					return fmt.Errorf("--address: %w", err)
				}
				node, err := g.Resolve(addr)
				if err != nil {
					return err
				}
				if err := p.LoadNode(ref.ID, node); err != nil {
					return err
				}
				return emit(g)

			case preset.TypeHair:
				h, err := p.LoadHair(ref.ID)
				if err != nil {
					return err
				}
				return emit(h)
			}

			settings, name, err := p.LoadSettings(t, ref.ID)
			if err != nil {
				return err
			}
			return emit(map[string]any{"name": name, "type": t, "settings": settings})
		})
	},
}

// stackResolver finds the live graph for a stored layer: by label first,
// then by graph name.
func stackResolver(st *graph.Stack) preset.Resolver {
	return func(label string, info *preset.GraphInfo) (*graph.Graph, error) {
		for _, l := range st.Layers {
			if l.Label == label {
				return l.Graph, nil
			}
		}
		for _, l := range st.Layers {
			if l.Graph.Name == info.Name {
				return l.Graph, nil
			}
		}
		return nil, fmt.Errorf("stack file has no layer %q and no graph named %q", label, info.Name)
	}
}

// emit writes v to --output as YAML, or JSON with --json.
func emit(v any) error {
	var (
		data []byte
		err  error
	)
	if jsonOutput {
		if loadOutput == "" || loadOutput == "-" {
			return printJSON(v)
		}
		data, err = jsonIndent(v)
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return err
	}
	return writeOutput(loadOutput, data)
}

func init() {
	loadCmd.Flags().BoolVar(&loadValuesOnly, "values-only", false, "Apply the flat values only")
	loadCmd.Flags().StringVarP(&loadOutput, "output", "o", "", "Write the result to this file")
	loadCmd.Flags().StringVar(&loadAddress, "address", "", "Node address for node presets, e.g. 3.1")
	rootCmd.AddCommand(loadCmd)
}
