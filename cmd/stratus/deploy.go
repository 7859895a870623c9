package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/apply"
	"github.com/szaher/stratus/internal/events"
	"github.com/szaher/stratus/internal/plan"
	"github.com/szaher/stratus/internal/providers"
	"github.com/szaher/stratus/internal/telemetry"
)

func newDeployCmd() *cobra.Command {
	var (
		stage        string
		providerName string
		workers      int
		autoApprove  bool
		eventsLog    string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Plan and apply changes for a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)
			logger = telemetry.StageLogger(logger, ctx, stage)

			app, res, err := loadAndBuild(stage)
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

			cid := telemetry.CorrelationID(ctx)
			emitter := &events.CollectorEmitter{}
			emitter.Emit(events.New(events.PlanStarted, cid).WithData("stage", stage))
			p, err := plan.Compute(res.Graph, previous)
			if err != nil {
				return err
			}
			creates, updates, deletes := p.Counts()
			emitter.Emit(events.New(events.PlanCompleted, cid).
				WithData("creates", creates).
				WithData("updates", updates).
				WithData("deletes", deletes))
			if p.Empty() {
				fmt.Println("No changes. Deployment is up-to-date.")
				return nil
			}

			fmt.Print(plan.FormatText(p))
			if !autoApprove {
				fmt.Print("\nDo you want to apply these changes? (yes/no): ")
				var response string
				_, _ = fmt.Scanln(&response)
				if response != "yes" {
					fmt.Println("Deploy cancelled.")
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

			executor := apply.New(provider, store).
				WithWorkers(workers).
				WithLogger(logger).
				WithEmitter(emitter)

			result, err := executor.Apply(ctx, p, previous)
			if eventsLog != "" {
				if logErr := events.ExportLog(emitter.Events, eventsLog); logErr != nil {
					fmt.Fprintf(os.Stderr, "Warning: writing event log: %v\n", logErr)
				}
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n%d created, %d updated, %d deleted, %d failed, %d skipped\n",
				result.Created, result.Updated, result.Deleted, result.Failed, result.Skipped)
			for _, execErr := range result.Errors {
				fmt.Fprintf(os.Stderr, "  failed: %v\n", &execErr)
			}
			return incompleteApplyErr(result.Failed, result.Skipped)
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")
	cmd.Flags().StringVar(&providerName, "provider", "aws", "Control-plane provider")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent instruction limit")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip confirmation prompt")
	cmd.Flags().StringVar(&eventsLog, "events-log", "", "Write lifecycle events to a JSON file")

	return cmd
}
