package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/graph"
)

func newPackageCmd() *cobra.Command {
	var (
		stage  string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Generate deployment artifacts without applying",
		Long: `Package runs the graph builder, permission inference and API
document generation for a stage and writes the results as standalone
artifacts: the resource graph, one API document per API definition and
one policy document per function. No remote call is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := loadAndBuild(stage)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}

			graphOut := struct {
				Stage string        `json:"stage"`
				Nodes []*graph.Node `json:"nodes"`
			}{Stage: stage, Nodes: res.Graph.Nodes()}
			if err := writeJSON(filepath.Join(outDir, "graph.json"), graphOut); err != nil {
				return err
			}

			for id, doc := range res.Documents {
				data, err := doc.Indented()
				if err != nil {
					return err
				}
				name := fmt.Sprintf("api-%s.json", filepath.Base(id))
				if err := os.WriteFile(filepath.Join(outDir, name), data, 0644); err != nil {
					return err
				}
			}

			for _, n := range res.Graph.NodesOfKind(graph.KindRole) {
				name := fmt.Sprintf("policy-%s.json", n.Name)
				if err := writeJSON(filepath.Join(outDir, name), n.Attributes["policy"]); err != nil {
					return err
				}
			}

			fmt.Printf("Artifacts written to %s\n", outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")
	cmd.Flags().StringVar(&outDir, "out", "out", "Artifact output directory")

	return cmd
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
