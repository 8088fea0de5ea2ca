// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package sqlite stores case definitions, case executions and message subscriptions in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/pbinitiative/zencmmn/internal/appcontext"
	"github.com/pbinitiative/zencmmn/internal/config"
	otelint "github.com/pbinitiative/zencmmn/internal/otel"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
	"github.com/pbinitiative/zencmmn/pkg/zenflake"
)

type DB struct {
	sqlDB    *sql.DB
	logger   hclog.Logger
	tracer   trace.Tracer
	defCache *expirable.LRU[string, runtime.CaseDefinition]
}

var _ storage.Storage = &DB{}

// Open opens the database at cfg.Path and applies the embedded migrations.
func Open(ctx context.Context, cfg config.Sqlite, logger hclog.Logger) (*DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = hclog.Default()
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=case_sensitive_like(1)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// one writer at a time, SQLite serializes writes anyway
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	cacheSize := cfg.DefinitionCacheSize
	if cacheSize <= 0 {
		cacheSize = 200
	}
	d := &DB{
		sqlDB:    sqlDB,
		logger:   logger.Named("sqlite"),
		tracer:   otel.GetTracerProvider().Tracer("zencmmn-sqlite"),
		defCache: expirable.NewLRU[string, runtime.CaseDefinition](cacheSize, nil, cfg.DefinitionCacheTTL),
	}
	if err := d.applyMigrations(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}

func (d *DB) GenerateId() int64 {
	return zenflake.GlobalNode().Generate().Int64()
}

func (d *DB) NewBatch() storage.Batch {
	return &DBBatch{
		db:        d,
		stmtToRun: make([]statement, 0, 10),
		logger:    d.logger,
	}
}

func (d *DB) inTx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := f(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

func (d *DB) exec(ctx context.Context, stmt statement) error {
	ctx, span := d.tracer.Start(ctx, "sqlite-exec", trace.WithAttributes(
		attribute.String(otelint.AttributeExec, stmt.query),
	))
	defer span.End()
	if _, err := d.sqlDB.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("Error executing SQL statement", "err", err)
		return err
	}
	return nil
}

// queryRows runs query and calls scan for every returned row
func (d *DB) queryRows(ctx context.Context, query string, args []any, scan func(rows *sql.Rows) error) error {
	ctx, span := d.tracer.Start(ctx, "sqlite-query", trace.WithAttributes(
		attribute.String(otelint.AttributeQuery, query),
	))
	defer span.End()
	if command, ok := appcontext.CommandFromContext(ctx); ok {
		span.SetAttributes(attribute.String(otelint.AttributeCommand, command))
	}
	err := func() error {
		rows, err := d.sqlDB.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			if err := scan(rows); err != nil {
				return err
			}
		}
		return rows.Err()
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to query: %w", err)
	}
	return nil
}

// IsConstraintError reports whether err was caused by a violated constraint
func IsConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended result codes keep the primary code in the lower byte
		return sqliteErr.Code()&0xff == sqlite3lib.SQLITE_CONSTRAINT
	}
	return false
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}
