package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/szaher/stratus/internal/build"
	"github.com/szaher/stratus/internal/model"
	"github.com/szaher/stratus/internal/policy"
	"github.com/szaher/stratus/internal/state"
	"github.com/szaher/stratus/internal/telemetry"
)

const defaultStateDir = ".stratus/state"

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return telemetry.NewLogger(os.Stderr, level)
}

// loadAndBuild loads the application definition, validates it and
// lowers it into the resource graph for a stage. Policy diagnostics
// are printed as warnings; they never block the run.
func loadAndBuild(stage string) (*model.Application, *build.Result, error) {
	app, err := model.Load(appFile, stage)
	if err != nil {
		return nil, nil, err
	}

	builder := build.NewBuilder(policy.NewAnalyzer())
	res, err := builder.Build(app, stage)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(os.Stderr, "Warning: permission inference: %s: %s\n", d.File, d.Message)
	}
	return app, res, nil
}

// incompleteApplyErr turns failed and skipped instruction counts into
// the error that drives a non-zero exit. Returning the error, rather
// than exiting in place, lets deferred store cleanup run.
func incompleteApplyErr(failed, skipped int) error {
	if failed == 0 && skipped == 0 {
		return nil
	}
	return fmt.Errorf("apply incomplete: %d failed, %d skipped", failed, skipped)
}

// newStore opens the state backend declared in the application
// definition. The returned closer is a no-op for backends without
// connections to release.
func newStore(ctx context.Context, app *model.Application) (state.Store, func(), error) {
	noop := func() {}
	switch app.State.Backend {
	case "", "local":
		dir := app.State.Dir
		if dir == "" {
			dir = defaultStateDir
		}
		return state.NewLocalStore(dir), noop, nil
	case "s3":
		client, err := newS3Client(ctx)
		if err != nil {
			return nil, nil, err
		}
		return state.NewS3Store(ctx, client, app.State.Bucket, app.State.Prefix), noop, nil
	case "postgres":
		store, err := state.NewPostgresStore(ctx, app.State.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", app.State.Backend)
	}
}
