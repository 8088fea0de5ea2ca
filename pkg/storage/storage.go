// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
)

var ErrNotFound = errors.New("record not found")

// Storage interface for reading and writing case data into a (persistent) state.
// Interface is used by the cmmn engine to interact with state.
//
// Methods that are expected to return exactly one match MUST return ErrNotFound when the result does not exist
type Storage interface {
	CaseDefinitionStorageReader
	CaseDefinitionStorageWriter
	CaseExecutionStorageReader
	CaseExecutionStorageWriter
	MessageSubscriptionStorageReader
	MessageSubscriptionStorageWriter

	GenerateId() int64
	NewBatch() Batch
}

type Batch interface {
	CaseDefinitionStorageWriter
	CaseExecutionStorageWriter
	MessageSubscriptionStorageWriter

	// Flush writes all statements of the batch in one unit and prepares the batch for new statements
	Flush(ctx context.Context) error
	// Clear drops all statements that were not flushed yet
	Clear()
}

type CaseDefinitionStorageReader interface {
	FindCaseDefinitionById(ctx context.Context, id string) (runtime.CaseDefinition, error)

	// FindLatestCaseDefinitionByKey returns the definition with the highest version for key
	FindLatestCaseDefinitionByKey(ctx context.Context, key string) (runtime.CaseDefinition, error)

	// FindCaseDefinitions returns definitions matching criteria, ordered by criteria.OrderBy and then by id
	FindCaseDefinitions(ctx context.Context, criteria CaseDefinitionCriteria, page Page) ([]runtime.CaseDefinition, error)

	CountCaseDefinitions(ctx context.Context, criteria CaseDefinitionCriteria) (int64, error)
}

type CaseDefinitionStorageWriter interface {
	// SaveCaseDefinition persists a CaseDefinition
	// and potentially overwrites prior data stored with the given id
	SaveCaseDefinition(ctx context.Context, definition runtime.CaseDefinition) error
}

type CaseExecutionStorageReader interface {
	FindCaseExecutionById(ctx context.Context, id string) (runtime.CaseExecution, error)

	// FindCaseExecutionsByCaseInstanceId returns the whole execution tree of a case instance, root first
	FindCaseExecutionsByCaseInstanceId(ctx context.Context, caseInstanceId string) ([]runtime.CaseExecution, error)

	FindCaseExecutions(ctx context.Context, criteria CaseExecutionCriteria, page Page) ([]runtime.CaseExecution, error)

	CountCaseExecutions(ctx context.Context, criteria CaseExecutionCriteria) (int64, error)

	// FindCaseInstancesToCleanup returns CLOSED case instances with a removal time not after now
	FindCaseInstancesToCleanup(ctx context.Context, now time.Time, limit int) ([]runtime.CaseExecution, error)
}

type CaseExecutionStorageWriter interface {
	// SaveCaseExecution persists the execution
	// and potentially overwrites prior data stored with given id
	SaveCaseExecution(ctx context.Context, execution runtime.CaseExecution) error

	DeleteCaseExecution(ctx context.Context, id string) error
}

type MessageSubscriptionStorageReader interface {
	FindMessageSubscriptions(ctx context.Context, criteria MessageSubscriptionCriteria) ([]runtime.MessageSubscription, error)
}

type MessageSubscriptionStorageWriter interface {
	// SaveMessageSubscription persists the MessageSubscription
	// and potentially overwrites prior data stored with given id
	SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error

	DeleteMessageSubscription(ctx context.Context, id string) error
}
