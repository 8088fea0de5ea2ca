package exporter

import (
	"github.com/hashicorp/go-hclog"
)

// LogExporter writes every event to a named hclog logger.
type LogExporter struct {
	logger hclog.Logger
}

var _ EventExporter = &LogExporter{}

func NewLogExporter(logger hclog.Logger) *LogExporter {
	if logger == nil {
		logger = hclog.Default()
	}
	return &LogExporter{logger: logger.Named("exporter")}
}

func (e *LogExporter) NewCaseDefinitionEvent(event *CaseDefinitionEvent) {
	e.logger.Info("case definition deployed",
		"caseDefinitionId", event.CaseDefinitionId,
		"key", event.CaseDefinitionKey,
		"version", event.Version,
		"deploymentId", event.DeploymentId,
		"resource", event.ResourceName,
	)
}

func (e *LogExporter) NewCaseExecutionEvent(event *CaseExecutionEvent) {
	e.logger.Debug("case execution event",
		"intent", event.Intent,
		"caseInstanceId", event.CaseInstanceId,
		"caseExecutionId", event.CaseExecutionId,
		"activityId", event.ActivityId,
		"activityType", event.ActivityType,
		"state", event.State,
	)
}
