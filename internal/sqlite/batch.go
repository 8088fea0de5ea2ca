// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/internal/appcontext"
	otelint "github.com/pbinitiative/zencmmn/internal/otel"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// DBBatch collects write statements and runs them in a single transaction on Flush.
type DBBatch struct {
	db               *DB
	stmtToRun        []statement
	postFlushActions []func()
	logger           hclog.Logger
}

var _ storage.Batch = &DBBatch{}

func (b *DBBatch) Flush(ctx context.Context) error {
	if len(b.stmtToRun) == 0 {
		return nil
	}
	ctx, span := b.db.tracer.Start(ctx, "sqlite-batch", trace.WithAttributes(
		attribute.Int("statements", len(b.stmtToRun)),
	))
	defer span.End()
	if command, ok := appcontext.CommandFromContext(ctx); ok {
		span.SetAttributes(attribute.String(otelint.AttributeCommand, command))
	}

	err := b.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range b.stmtToRun {
			if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
				return fmt.Errorf("failed to execute %q: %w", stmt.query, err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("Error executing batch", "err", err, "statements", len(b.stmtToRun))
		return err
	}
	for _, action := range b.postFlushActions {
		action()
	}
	b.Clear()
	return nil
}

func (b *DBBatch) Clear() {
	b.stmtToRun = make([]statement, 0, 10)
	b.postFlushActions = nil
}

func (b *DBBatch) SaveCaseDefinition(ctx context.Context, definition runtime.CaseDefinition) error {
	b.stmtToRun = append(b.stmtToRun, saveCaseDefinitionStatement(definition))
	b.postFlushActions = append(b.postFlushActions, func() {
		b.db.defCache.Remove(definition.Id)
	})
	return nil
}

func (b *DBBatch) SaveCaseExecution(ctx context.Context, execution runtime.CaseExecution) error {
	stmt, err := saveCaseExecutionStatement(execution)
	if err != nil {
		return err
	}
	b.stmtToRun = append(b.stmtToRun, stmt)
	return nil
}

func (b *DBBatch) DeleteCaseExecution(ctx context.Context, id string) error {
	b.stmtToRun = append(b.stmtToRun, deleteCaseExecutionStatement(id))
	return nil
}

func (b *DBBatch) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	b.stmtToRun = append(b.stmtToRun, saveMessageSubscriptionStatement(subscription))
	return nil
}

func (b *DBBatch) DeleteMessageSubscription(ctx context.Context, id string) error {
	b.stmtToRun = append(b.stmtToRun, deleteMessageSubscriptionStatement(id))
	return nil
}
