package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexhughson/reflo/internal/config"
	"github.com/alexhughson/reflo/internal/manifest"
	"github.com/alexhughson/reflo/internal/objectstore"
	"github.com/alexhughson/reflo/internal/reactive"
	"github.com/alexhughson/reflo/internal/rlog"
	"github.com/alexhughson/reflo/internal/statestore"
	"github.com/alexhughson/reflo/internal/statestore/pgstore"
)

func createRunCommand() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Runs every generator to a fixed point",
		Long:  `reflo run [--manifest reflo.yaml] [--config reflo.yaml]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), manifestPath)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "reflo.yaml", "build manifest file")
	return cmd
}

func runOnce(ctx context.Context, manifestPath string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := rlog.New(cfg.LogLevel, cfg.LogFormat)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var objStore *objectstore.Client
	if cfg.Object.Endpoint != "" {
		objStore, err = objectstore.New(objectstore.Config{
			Endpoint:        cfg.Object.Endpoint,
			AccessKeyID:     cfg.Object.AccessKeyID,
			SecretAccessKey: cfg.Object.SecretAccessKey,
			Secure:          cfg.Object.Secure,
		})
		if err != nil {
			return fmt.Errorf("connecting to object store: %w", err)
		}
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("loading manifest %s: %w", manifestPath, err)
	}
	generators := m.BuildGenerators(objStore)

	engine := reactive.New(generators, store)
	engine.Workers = cfg.Workers
	engine.MaxTasks = cfg.MaxTasks

	start := time.Now()
	result, err := engine.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	logger.Info("run complete",
		"run_id", result.RunID,
		"tasks_executed", result.TasksExecuted,
		"total_tasks", result.TotalTasks,
		"regenerations", result.Regenerations,
		"converged", result.Converged(),
		"elapsed", time.Since(start),
	)
	if !result.Converged() {
		return fmt.Errorf("run hit max_tasks=%d before reaching a fixed point", cfg.MaxTasks)
	}
	return nil
}

// openStore picks the file-backed store unless cfg.PostgresDSN names a
// shared database, returning a no-op close for the file store so
// callers can always defer it.
func openStore(ctx context.Context, cfg *config.Config) (statestore.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		store, err := pgstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres state store: %w", err)
		}
		return store, func() { store.Close() }, nil
	}

	store, err := statestore.NewFileStore(cfg.StateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file state store: %w", err)
	}
	return store, func() {}, nil
}
