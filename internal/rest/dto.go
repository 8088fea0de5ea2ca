package rest

import (
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/cmmn"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/variables"
)

// VariableValueDto carries a value together with the name of its type, see variables.ToType
type VariableValueDto struct {
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

type TriggerVariableValueDto struct {
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
	Local bool   `json:"local"`
}

type VariableNameDto struct {
	Name  string `json:"name"`
	Local bool   `json:"local"`
}

type CaseExecutionTriggerDto struct {
	Variables map[string]TriggerVariableValueDto `json:"variables,omitempty"`
	Deletions []VariableNameDto                  `json:"deletions,omitempty"`
}

type PatchVariablesDto struct {
	Modifications map[string]VariableValueDto `json:"modifications,omitempty"`
	Deletions     []string                    `json:"deletions,omitempty"`
}

type CaseExecutionDto struct {
	Id               string `json:"id"`
	CaseInstanceId   string `json:"caseInstanceId"`
	ParentId         string `json:"parentId,omitempty"`
	CaseDefinitionId string `json:"caseDefinitionId"`
	BusinessKey      string `json:"businessKey,omitempty"`
	ActivityId       string `json:"activityId"`
	ActivityName     string `json:"activityName"`
	ActivityType     string `json:"activityType"`
	State            string `json:"state"`
	Required         bool   `json:"required"`
	Enabled          bool   `json:"enabled"`
	Active           bool   `json:"active"`
	Disabled         bool   `json:"disabled"`
}

func fromCaseExecution(e runtime.CaseExecution) CaseExecutionDto {
	return CaseExecutionDto{
		Id:               e.Id,
		CaseInstanceId:   e.CaseInstanceId,
		ParentId:         e.ParentId,
		CaseDefinitionId: e.CaseDefinitionId,
		BusinessKey:      e.BusinessKey,
		ActivityId:       e.ActivityId,
		ActivityName:     e.ActivityName,
		ActivityType:     string(e.ActivityType),
		State:            string(e.State),
		Required:         e.Required,
		Enabled:          e.IsEnabled(),
		Active:           e.IsActive(),
		Disabled:         e.IsDisabled(),
	}
}

type CaseInstanceDto struct {
	Id               string `json:"id"`
	CaseDefinitionId string `json:"caseDefinitionId"`
	BusinessKey      string `json:"businessKey,omitempty"`
	State            string `json:"state"`
	Active           bool   `json:"active"`
	Completed        bool   `json:"completed"`
	Terminated       bool   `json:"terminated"`
}

func fromCaseInstance(ci runtime.CaseInstance) CaseInstanceDto {
	return CaseInstanceDto{
		Id:               ci.Id,
		CaseDefinitionId: ci.CaseDefinitionId,
		BusinessKey:      ci.BusinessKey,
		State:            string(ci.State),
		Active:           ci.IsActive(),
		Completed:        ci.IsCompleted(),
		Terminated:       ci.IsTerminated(),
	}
}

type CreateCaseInstanceDto struct {
	BusinessKey string                      `json:"businessKey,omitempty"`
	Variables   map[string]VariableValueDto `json:"variables,omitempty"`
}

type CaseDefinitionDto struct {
	Id                string `json:"id"`
	Key               string `json:"key"`
	Category          string `json:"category"`
	Name              string `json:"name"`
	Version           int32  `json:"version"`
	Resource          string `json:"resource"`
	DeploymentId      string `json:"deploymentId"`
	HistoryTimeToLive string `json:"historyTimeToLive,omitempty"`
}

func fromCaseDefinition(d runtime.CaseDefinition) CaseDefinitionDto {
	return CaseDefinitionDto{
		Id:                d.Id,
		Key:               d.Key,
		Category:          d.Category,
		Name:              d.Name,
		Version:           d.Version,
		Resource:          d.ResourceName,
		DeploymentId:      d.DeploymentId,
		HistoryTimeToLive: d.HistoryTimeToLive,
	}
}

type CountResultDto struct {
	Count int64 `json:"count"`
}

type DeploymentDto struct {
	Id                      string                       `json:"id"`
	Duplicate               bool                         `json:"duplicate"`
	DeployedCaseDefinitions map[string]CaseDefinitionDto `json:"deployedCaseDefinitions"`
}

func fromDeploymentResult(res cmmn.DeploymentResult) DeploymentDto {
	dto := DeploymentDto{
		Id:                      res.DeploymentId,
		Duplicate:               res.Duplicate,
		DeployedCaseDefinitions: make(map[string]CaseDefinitionDto, len(res.Definitions)),
	}
	for _, d := range res.Definitions {
		dto.DeployedCaseDefinitions[d.Id] = fromCaseDefinition(d)
	}
	return dto
}

type CorrelationMessageDto struct {
	MessageName     string                      `json:"messageName"`
	BusinessKey     string                      `json:"businessKey,omitempty"`
	CaseInstanceId  string                      `json:"caseInstanceId,omitempty"`
	CorrelationKeys map[string]VariableValueDto `json:"correlationKeys,omitempty"`
	Variables       map[string]VariableValueDto `json:"variables,omitempty"`
	ResultEnabled   bool                        `json:"resultEnabled"`
}

type MessageCorrelationResultDto struct {
	ResultType    string            `json:"resultType"`
	CaseExecution *CaseExecutionDto `json:"caseExecution,omitempty"`
	CaseInstance  *CaseInstanceDto  `json:"caseInstance,omitempty"`
}

func fromMessageCorrelationResult(res cmmn.MessageCorrelationResult) MessageCorrelationResultDto {
	dto := MessageCorrelationResultDto{ResultType: string(res.ResultType)}
	if res.Execution != nil {
		e := fromCaseExecution(*res.Execution)
		dto.CaseExecution = &e
	}
	if res.CaseInstance != nil {
		ci := fromCaseInstance(*res.CaseInstance)
		dto.CaseInstance = &ci
	}
	return dto
}

type StatusDto struct {
	Name            string `json:"name"`
	Status          string `json:"status"`
	CaseDefinitions int64  `json:"caseDefinitions"`
}

func toVariableValueDtos(vars map[string]any) map[string]VariableValueDto {
	res := make(map[string]VariableValueDto, len(vars))
	for name, value := range vars {
		res[name] = toVariableValueDto(value)
	}
	return res
}

func toVariableValueDto(value any) VariableValueDto {
	return VariableValueDto{Value: variables.ToJSONValue(value), Type: variables.TypeOf(value)}
}

// fromVariableValueDtos converts every value, the first failing variable is reported with its name
func fromVariableValueDtos(dtos map[string]VariableValueDto) (map[string]any, error) {
	res := make(map[string]any, len(dtos))
	for _, name := range sortedKeys(dtos) {
		v, err := variables.ToType(dtos[name].Type, dtos[name].Value)
		if err != nil {
			return nil, &variableConversionError{name: name, err: err}
		}
		res[name] = v
	}
	return res, nil
}

type variableConversionError struct {
	name string
	err  error
}

func (e *variableConversionError) Error() string {
	return fmt.Sprintf("variable %s: %s", e.name, e.err)
}

func (e *variableConversionError) Unwrap() error {
	return e.err
}
