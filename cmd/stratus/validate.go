package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szaher/stratus/internal/model"
)

func newValidateCmd() *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the application definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := model.Load(appFile, stage)
			if err != nil {
				return err
			}
			if err := app.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: valid (%d functions, %d routes, %d event sources)\n",
				appFile, len(app.Functions), len(app.Routes), len(app.EventSources))
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "dev", "Deployment stage")

	return cmd
}
