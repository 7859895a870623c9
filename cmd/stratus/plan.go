package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/plan"
	"github.com/szaher/stratus/internal/telemetry"
)

func newPlanCmd() *cobra.Command {
	var (
		stage      string
		jsonOutput bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes a deploy would apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := telemetry.WithCorrelationID(cmd.Context(), correlationID)

			runOnce := func() error {
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
				p, err := plan.Compute(res.Graph, previous)
				if err != nil {
					return err
				}
				for _, op := range []plan.Op{plan.OpCreate, plan.OpUpdate, plan.OpDelete} {
					telemetry.PlanInstructions.WithLabelValues(string(op)).Set(0)
				}
				creates, updates, deletes := p.Counts()
				telemetry.PlanInstructions.WithLabelValues(string(plan.OpCreate)).Set(float64(creates))
				telemetry.PlanInstructions.WithLabelValues(string(plan.OpUpdate)).Set(float64(updates))
				telemetry.PlanInstructions.WithLabelValues(string(plan.OpDelete)).Set(float64(deletes))

				if jsonOutput {
					out, err := plan.FormatJSON(p)
					if err != nil {
						return err
					}
					fmt.Print(out)
					return nil
				}
				fmt.Print(plan.FormatText(p))
				return nil
			}

			if err := runOnce(); err != nil {
				if !watch {
					return err
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if !watch {
				return nil
			}
			return watchAndReplan(runOnce)
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the plan as JSON")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-plan whenever the definition or source changes")

	return cmd
}

// watchAndReplan re-runs the planner whenever the application
// definition or anything in its directory changes, until interrupted.
func watchAndReplan(runOnce func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(appFile)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	// Best effort: also watch immediate subdirectories so function
	// source edits trigger a re-plan.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			_ = watcher.Add(filepath.Join(dir, e.Name()))
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Fprintln(os.Stderr, "Watching for changes. Press Ctrl-C to stop.")
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fmt.Fprintf(os.Stderr, "\nChange detected: %s\n", ev.Name)
			if err := runOnce(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		case <-interrupt:
			return nil
		}
	}
}
