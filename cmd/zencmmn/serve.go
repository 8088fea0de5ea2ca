// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/pbinitiative/zencmmn/internal/config"
	"github.com/pbinitiative/zencmmn/internal/log"
	"github.com/pbinitiative/zencmmn/internal/otel"
	"github.com/pbinitiative/zencmmn/internal/rest"
	"github.com/pbinitiative/zencmmn/internal/sqlite"
	"github.com/pbinitiative/zencmmn/pkg/cmmn"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/script/js"
	"github.com/pbinitiative/zencmmn/pkg/storage/inmemory"
)

func newServeCommand() *cobra.Command {
	var deploy []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and its REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(config.FileName())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), conf, deploy)
		},
	}
	cmd.Flags().StringSliceVar(&deploy, "deploy", nil, "CMMN files deployed on startup")
	return cmd
}

func serve(ctx context.Context, conf config.Config, deploy []string) error {
	appContext, ctxCancel := context.WithCancel(ctx)
	defer ctxCancel()

	openTelemetry, err := otel.SetupOtel(conf.Tracing)
	if err != nil {
		return fmt.Errorf("failed to set up OTEL: %w", err)
	}
	defer openTelemetry.Stop(context.WithoutCancel(appContext))

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  conf.Name,
		Level: hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
	})
	engine, closeEngine, err := newEngine(appContext, conf, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	for _, file := range deploy {
		res, err := engine.DeployFile(appContext, file)
		if err != nil {
			return fmt.Errorf("failed to deploy %s: %w", file, err)
		}
		log.Infof(appContext, "Deployed %s as deployment %s (duplicate: %t)", filepath.Base(file), res.DeploymentId, res.Duplicate)
	}

	go cleanupHistory(appContext, engine, conf.History.CleanupInterval)

	svr, err := rest.NewServer(engine, conf, openTelemetry.Requests)
	if err != nil {
		return fmt.Errorf("failed to create REST server: %w", err)
	}
	if svr.Start() == nil {
		return fmt.Errorf("failed to listen on %s", conf.Server.Addr)
	}

	appStop := make(chan os.Signal, 2)
	handleSigterm(appStop, appContext)

	ctxCancel()
	svr.Stop(context.Background())
	return nil
}

// newEngine opens the configured storage and returns the engine with a function releasing its resources
func newEngine(ctx context.Context, conf config.Config, logger hclog.Logger) (*cmmn.Engine, func(), error) {
	options := []cmmn.EngineOption{
		cmmn.WithName(conf.Name),
		cmmn.WithLogger(logger),
	}
	closeFn := func() {}

	switch conf.Persistence.Type {
	case config.PersistenceSqlite:
		db, err := sqlite.Open(ctx, conf.Persistence.Sqlite, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		options = append(options, cmmn.WithStorage(db))
		closeFn = func() {
			if err := db.Close(); err != nil {
				log.Error("failed to close sqlite storage: %s", err)
			}
		}
	default:
		options = append(options, cmmn.WithStorage(inmemory.NewStorage()))
	}

	jsRuntime, err := js.NewJsRuntime(ctx, conf.Script.MaxVms, conf.Script.MinVms)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to start script runtime: %w", err)
	}
	options = append(options, cmmn.WithScriptRuntime(jsRuntime))

	if conf.Exporter.Log {
		options = append(options, cmmn.WithExporter(exporter.NewLogExporter(logger)))
	}
	return cmmn.NewEngine(options...), closeFn, nil
}

func cleanupHistory(ctx context.Context, engine *cmmn.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := engine.CleanupHistory(ctx, now.UTC())
			if err != nil {
				log.Errorf(ctx, "History cleanup failed: %s", err)
				continue
			}
			if removed > 0 {
				log.Infof(ctx, "Removed %d case instances from history", removed)
			}
		}
	}
}

func handleSigterm(appStop chan os.Signal, ctx context.Context) {
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-appStop:
		log.Infof(ctx, "Received %s. Shutting down", sig.String())
	case <-ctx.Done():
	}
}
