package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/telemetry"
)

func newURLCmd() *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the deployed API endpoint for a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)

			app, err := model.Load(appFile, stage)
			if err != nil {
				return err
			}
			store, closeStore, err := newStore(ctx, app)
			if err != nil {
				return err
			}
			defer closeStore()

			record, err := store.Load(stage)
			if err != nil {
				return err
			}
			for _, res := range record.Resources {
				if res.ResourceType == string(graph.KindAPIDefinition) {
					if url, ok := res.Identifiers["endpoint_url"]; ok {
						fmt.Println(url)
						return nil
					}
				}
			}
			return fmt.Errorf("stage %q has no deployed API", stage)
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")

	return cmd
}
