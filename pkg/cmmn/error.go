// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package cmmn

import (
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// EngineError is the base error of the engine, every other engine error can be matched with errors.As against it.
type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string {
	return e.Msg
}

// newEngineErrorf uses fmt.Sprintf(format, a...) to format the message
func newEngineErrorf(format string, a ...any) error {
	return &EngineError{
		Msg: fmt.Sprintf(format, a...),
	}
}

type NotFoundError struct {
	EngineError
}

func (e *NotFoundError) Unwrap() error {
	return storage.ErrNotFound
}

func newNotFoundErrorf(format string, a ...any) error {
	return &NotFoundError{EngineError{Msg: fmt.Sprintf(format, a...)}}
}

// NotAllowedError is returned when a transition is not allowed in the current state of a case execution.
type NotAllowedError struct {
	EngineError
}

func newNotAllowedErrorf(format string, a ...any) error {
	return &NotAllowedError{EngineError{Msg: fmt.Sprintf(format, a...)}}
}

type MismatchingMessageCorrelationError struct {
	EngineError
	MessageName string
}

func newMismatchingMessageCorrelationError(messageName string, reason string) error {
	return &MismatchingMessageCorrelationError{
		EngineError: EngineError{Msg: fmt.Sprintf("Cannot correlate message '%s': %s", messageName, reason)},
		MessageName: messageName,
	}
}

type ScriptEvaluationError struct {
	EngineError
	Expression string
	Err        error
}

func (e *ScriptEvaluationError) Error() string {
	if e.Err != nil {
		return e.Msg + "\nerror: " + e.Err.Error()
	}
	return e.Msg
}

func (e *ScriptEvaluationError) Unwrap() error {
	return e.Err
}

func newScriptEvaluationError(expression string, err error) error {
	return &ScriptEvaluationError{
		EngineError: EngineError{Msg: fmt.Sprintf("failed to evaluate expression \"%s\"", expression)},
		Expression:  expression,
		Err:         err,
	}
}

// AsEngineError returns the engine error in err's chain.
func AsEngineError(err error) (*EngineError, bool) {
	for err != nil {
		switch e := err.(type) {
		case *EngineError:
			return e, true
		case *NotFoundError:
			return &e.EngineError, true
		case *NotAllowedError:
			return &e.EngineError, true
		case *MismatchingMessageCorrelationError:
			return &e.EngineError, true
		case *ScriptEvaluationError:
			return &e.EngineError, true
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				if e, ok := AsEngineError(inner); ok {
					return e, true
				}
			}
			return nil, false
		default:
			return nil, false
		}
	}
	return nil, false
}
