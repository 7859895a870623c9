package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/apply"
	"github.com/szaher/stratus/internal/graph"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/plan"
	"github.com/szaher/stratus/internal/providers"
	"github.com/szaher/stratus/internal/telemetry"
)

func newDeleteCmd() *cobra.Command {
	var (
		stage        string
		providerName string
		workers      int
		autoApprove  bool
	)

	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"destroy"},
		Short:   "Tear down all resources for a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			logger = telemetry.StageLogger(logger, ctx, stage)

			app, err := model.Load(appFile, stage)
			if err != nil {
				return err
			}

			store, closeStore, err := newStore(ctx, app)
			if err != nil {
				return err
			}
			defer closeStore()

			previous, err := store.Load(stage)
			if err != nil {
				return err
			}
			if len(previous.Resources) == 0 {
				fmt.Printf("Stage %q has no deployed resources.\n", stage)
				return nil
			}

			// Diffing against an empty graph plans a delete for every
			// recorded resource, dependents first.
			p, err := plan.Compute(graph.New(stage), previous)
			if err != nil {
				return err
			}

			fmt.Print(plan.FormatText(p))
			if !autoApprove {
				fmt.Print("\nDo you want to delete these resources? (yes/no): ")
				var response string
				_, _ = fmt.Scanln(&response)
				if response != "yes" {
					fmt.Println("Delete cancelled.")
					return nil
				}
			}

			factory, err := providers.Get(providerName)
			if err != nil {
				return err
			}
			provider, err := factory(ctx)
			if err != nil {
				return err
			}

			result, err := apply.New(provider, store).
				WithWorkers(workers).
				WithLogger(logger).
				Apply(ctx, p, previous)
			if err != nil {
				return err
			}

			fmt.Printf("\n%d deleted, %d failed, %d skipped\n",
				result.Deleted, result.Failed, result.Skipped)
			return incompleteApplyErr(result.Failed, result.Skipped)
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")
	cmd.Flags().StringVar(&providerName, "provider", "aws", "Control-plane provider")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent instruction limit")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip confirmation prompt")

	return cmd
}
