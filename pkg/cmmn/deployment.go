// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package cmmn

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

type DeploymentResult struct {
	DeploymentId string
	Definitions  []runtime.CaseDefinition
	// Duplicate is set when the resource equals the latest deployed version of all its cases
	Duplicate bool
}

// DeployFile deploys a CMMN file, the base name of the file is used as resource name
func (engine *Engine) DeployFile(ctx context.Context, filename string) (DeploymentResult, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return DeploymentResult{}, fmt.Errorf("failed to load from file: %w", err)
	}
	return engine.Deploy(ctx, filepath.Base(filename), data)
}

// Deploy parses and validates a CMMN resource and creates a new version of every case it contains
func (engine *Engine) Deploy(ctx context.Context, resourceName string, data []byte) (DeploymentResult, error) {
	engine.deployMu.Lock()
	defer engine.deployMu.Unlock()

	res, err := engine.commandExecutor.Execute(ctx, &deployCommand{resourceName: resourceName, data: data})
	if err != nil {
		return DeploymentResult{}, err
	}
	return res.(DeploymentResult), nil
}

type deployCommand struct {
	resourceName string
	data         []byte
}

var _ Command = &deployCommand{}

func (cmd *deployCommand) Name() string {
	return "deploy"
}

func (cmd *deployCommand) Execute(ctx context.Context, cc *CommandContext) (any, error) {
	engine := cc.engine
	definitions, err := cmmn10.Unmarshal(cmd.data)
	if err != nil {
		return nil, &EngineError{Msg: fmt.Sprintf("failed to parse resource %s: %s", cmd.resourceName, err)}
	}
	md5sum := md5.Sum(cmd.data)
	checksum := hex.EncodeToString(md5sum[:])

	latest := make([]*runtime.CaseDefinition, len(definitions.Cases))
	duplicate := true
	for i, c := range definitions.Cases {
		d, err := engine.persistence.FindLatestCaseDefinitionByKey(ctx, c.Id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			duplicate = false
		case err != nil:
			return nil, fmt.Errorf("failed to load latest case definition %s: %w", c.Id, err)
		default:
			latest[i] = &d
			if d.Checksum != checksum {
				duplicate = false
			}
		}
	}
	if duplicate {
		existing := make([]runtime.CaseDefinition, 0, len(latest))
		for _, d := range latest {
			existing = append(existing, *d)
		}
		engine.logger.Debug("skipping duplicate deployment", "resource", cmd.resourceName, "deploymentId", existing[0].DeploymentId)
		return DeploymentResult{DeploymentId: existing[0].DeploymentId, Definitions: existing, Duplicate: true}, nil
	}

	deploymentId := uuid.NewString()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelPkg.AttributeDeploymentId, deploymentId))
	result := DeploymentResult{DeploymentId: deploymentId}
	for i, c := range definitions.Cases {
		version := int32(1)
		if latest[i] != nil {
			version = latest[i].Version + 1
		}
		name := c.Name
		if name == "" {
			name = c.Id
		}
		d := runtime.CaseDefinition{
			Id:                fmt.Sprintf("%s:%d:%s", c.Id, version, engine.generateId()),
			Key:               c.Id,
			Name:              name,
			Category:          definitions.TargetNamespace,
			Version:           version,
			DeploymentId:      deploymentId,
			ResourceName:      cmd.resourceName,
			Checksum:          checksum,
			HistoryTimeToLive: c.HistoryTimeToLive,
			StartMessage:      c.StartMessage,
			Data:              cmd.data,
		}
		if err := cmd.replaceStartSubscription(ctx, cc, d); err != nil {
			return nil, err
		}
		cc.saveCaseDefinition(d)
		cc.exportDefinition(d)
		result.Definitions = append(result.Definitions, d)
	}
	return result, nil
}

// replaceStartSubscription drops the start subscriptions of older versions and subscribes d to its start message
func (cmd *deployCommand) replaceStartSubscription(ctx context.Context, cc *CommandContext, d runtime.CaseDefinition) error {
	starts, err := cc.findSubscriptions(ctx, storage.MessageSubscriptionCriteria{StartOnly: true}, func(s runtime.MessageSubscription) bool {
		return s.IsStartSubscription()
	})
	if err != nil {
		return err
	}
	for _, sub := range starts {
		if sub.CaseDefinitionKey == d.Key {
			cc.deleteSubscription(sub.Id)
			continue
		}
		if d.StartMessage != "" && sub.MessageName == d.StartMessage {
			return newEngineErrorf("Cannot deploy case definition %s: there is already a case definition (%s) which starts on message '%s'", d.Key, sub.CaseDefinitionKey, d.StartMessage)
		}
	}
	if d.StartMessage == "" {
		return nil
	}
	cc.saveSubscription(runtime.MessageSubscription{
		Id:                cc.engine.generateId(),
		MessageName:       d.StartMessage,
		CaseDefinitionId:  d.Id,
		CaseDefinitionKey: d.Key,
		CreatedAt:         cc.now(),
	})
	return nil
}
