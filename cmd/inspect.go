package cmd

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Morzio/Hair-Factory/internal/graph"
)

var (
	inspectClass         string
	inspectTopN          int
	inspectBusyThreshold int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <graph-file>",
	Short: "Report the topology of a graph file: components, unlinked nodes, kinds, special nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := graph.ParseClass(inspectClass)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		g, err := graph.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		report := graph.Inspect(c, g, inspectBusyThreshold, inspectTopN)
		if jsonOutput {
			return printJSON(report)
		}
		printTopology(report)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectClass, "class", "material", "Graph class: material or geometry")
	inspectCmd.Flags().IntVar(&inspectTopN, "top-n", 10, "Number of items to show per section")
	inspectCmd.Flags().IntVar(&inspectBusyThreshold, "busy-threshold", 3, "Minimum link count to list a node as busy")
	rootCmd.AddCommand(inspectCmd)
}

func printTopology(r *graph.TopologyReport) {
	fmt.Printf("\n  %s  signature %s\n\n", r.Name, truncID(r.Signature))

	fmt.Println("  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Nodes: %d  Links: %d  Groups: %d (max depth %d)\n", r.TotalNodes, r.TotalLinks, r.Groups, r.MaxDepth)
	fmt.Printf("  Components: %d  Largest: %d  Smallest: %d\n", r.NumComponents, r.LargestComponent, r.SmallestComponent)

	if r.UnlinkedCount > 0 {
		fmt.Printf("  Unlinked: %d nodes\n", r.UnlinkedCount)
		for _, addr := range r.Unlinked {
			fmt.Printf("    - %s\n", addr)
		}
		if r.UnlinkedCount > len(r.Unlinked) {
			fmt.Printf("    ... and %d more\n", r.UnlinkedCount-len(r.Unlinked))
		}
	}

	if len(r.Kinds) > 0 {
		fmt.Println("\n  Kinds:")
		for _, k := range r.Kinds {
			barWidth := int(math.Log2(float64(k.Count))) + 2
			fmt.Printf("    %-18s %4d  %s\n", truncTitle(k.Kind, 18), k.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(r.Busiest) > 0 {
		fmt.Println("\n  Busiest nodes:")
		for _, b := range r.Busiest {
			fmt.Printf("    %-8s links=%d (in=%d, out=%d)  %s %s\n",
				b.Address, b.Degree, b.InDegree, b.OutDegree, b.Kind, truncTitle(b.Name, 30))
		}
	}

	if len(r.Special) > 0 {
		fmt.Println("\n  SPECIAL NODES")
		fmt.Println("  ────────────────────────────────────────")
		kinds := make([]string, 0, len(r.Special))
		for k := range r.Special {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("    %-12s %s\n", k, strings.Join(r.Special[k], ", "))
		}
	}

	br := r.Bridges
	if br != nil && (len(br.Chokepoints) > 0 || len(br.Bridges) > 0) {
		fmt.Println("\n  STRUCTURAL FRAGILITY")
		fmt.Println("  ────────────────────────────────────────")
		if len(br.Chokepoints) > 0 {
			fmt.Printf("  %d chokepoints (removal splits the graph): %s\n",
				len(br.Chokepoints), strings.Join(br.Chokepoints, ", "))
		}
		if len(br.Bridges) > 0 {
			fmt.Printf("  %d bridge links:\n", len(br.Bridges))
			limit := inspectTopN
			if len(br.Bridges) < limit {
				limit = len(br.Bridges)
			}
			for _, b := range br.Bridges[:limit] {
				fmt.Printf("    %s -> %s\n", b.Source, b.Target)
			}
		}
	}

	fmt.Println()
}

func truncID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func truncTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Find a safe UTF-8 boundary
	truncated := s[:max]
	for len(truncated) > 0 && truncated[len(truncated)-1]>>6 == 2 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "..."
}
