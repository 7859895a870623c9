// Package main is the entry point for the stratus CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.2.0"

// Global flags.
var (
	appFile       string
	verbose       bool
	correlationID string
)

const defaultAppFile = "app.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stratus",
		Short: "Declarative serverless deployment tool",
		Long: `Stratus turns a declarative application definition (HTTP routes,
event triggers, authorizers) into a running set of cloud resources and
keeps the deployment convergent across repeated runs. Permissions are
inferred statically from function source, so no wildcard policy has to
be hand-written.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&appFile, "app", defaultAppFile, "Path to the application definition")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&correlationID, "correlation-id", "", "Set explicit correlation ID")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newDeployCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newPackageCmd())
	root.AddCommand(newURLCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
