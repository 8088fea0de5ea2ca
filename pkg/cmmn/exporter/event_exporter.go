// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package exporter

import "time"

// EventExporter receives engine events after the command that produced them was committed.
type EventExporter interface {
	NewCaseDefinitionEvent(event *CaseDefinitionEvent)
	NewCaseExecutionEvent(event *CaseExecutionEvent)
}

type Intent string

const (
	Created     Intent = "CREATED"
	Enabled     Intent = "ENABLED"
	Disabled    Intent = "DISABLED"
	ReEnabled   Intent = "RE_ENABLED"
	Started     Intent = "STARTED"
	Completed   Intent = "COMPLETED"
	Terminated  Intent = "TERMINATED"
	Occurred    Intent = "OCCURRED"
	Closed      Intent = "CLOSED"
	Deleted     Intent = "DELETED"
	VarsUpdated Intent = "VARIABLES_UPDATED"
)

type CaseDefinitionEvent struct {
	CaseDefinitionId  string
	CaseDefinitionKey string
	Version           int32
	DeploymentId      string
	ResourceName      string
	Checksum          string
	XmlData           []byte
}

type CaseExecutionEvent struct {
	CaseDefinitionId string
	CaseInstanceId   string
	CaseExecutionId  string
	ActivityId       string
	ActivityType     string
	State            string
	Intent           Intent
	Timestamp        time.Time
}
