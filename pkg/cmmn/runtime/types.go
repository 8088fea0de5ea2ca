package runtime

import (
	"maps"
	"time"
)

type CaseDefinition struct {
	Id                string // key:version:generated
	Key               string // The ID of the case as defined in the CMMN file
	Name              string
	Category          string // targetNamespace of the definitions element
	Version           int32  // default=1, incremented, when another case with the same key is deployed
	DeploymentId      string
	ResourceName      string
	Checksum          string // md5 of the resource, lower case hex
	HistoryTimeToLive string // ISO-8601 duration, empty when history is kept forever
	StartMessage      string // message name that instantiates this case
	Data              []byte // raw resource data
}

type ActivityType string

const (
	ActivityTypeCasePlanModel ActivityType = "casePlanModel"
	ActivityTypeStage         ActivityType = "stage"
	ActivityTypeHumanTask     ActivityType = "humanTask"
	ActivityTypeTask          ActivityType = "task"
	ActivityTypeProcessTask   ActivityType = "processTask"
	ActivityTypeCaseTask      ActivityType = "caseTask"
	ActivityTypeEventListener ActivityType = "eventListener"
)

// IsStageLike reports whether executions of the type hold child executions.
func (t ActivityType) IsStageLike() bool {
	return t == ActivityTypeCasePlanModel || t == ActivityTypeStage
}

// CaseExecution is a node of a case's runtime tree. The root node is the case instance.
type CaseExecution struct {
	Id                string
	CaseInstanceId    string
	ParentId          string // empty for case instances
	CaseDefinitionId  string
	CaseDefinitionKey string
	BusinessKey       string
	ActivityId        string
	ActivityName      string
	ActivityType      ActivityType
	State             CaseExecutionState
	PreviousState     CaseExecutionState
	Required          bool
	Variables         map[string]any
	CreatedAt         time.Time
	EndedAt           *time.Time
	RemovalTime       *time.Time
}

func (e CaseExecution) IsCaseInstance() bool {
	return e.ParentId == ""
}

func (e CaseExecution) IsActive() bool {
	return e.State == StateActive
}

func (e CaseExecution) IsEnabled() bool {
	return e.State == StateEnabled
}

func (e CaseExecution) IsDisabled() bool {
	return e.State == StateDisabled
}

func (e CaseExecution) IsAvailable() bool {
	return e.State == StateAvailable
}

func (e CaseExecution) IsTerminated() bool {
	return e.State == StateTerminated
}

// Clone returns a copy with its own variable map.
func (e CaseExecution) Clone() CaseExecution {
	c := e
	c.Variables = maps.Clone(e.Variables)
	if c.Variables == nil {
		c.Variables = map[string]any{}
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	if e.RemovalTime != nil {
		t := *e.RemovalTime
		c.RemovalTime = &t
	}
	return c
}

// CaseInstance is the root execution of a case.
type CaseInstance struct {
	CaseExecution
}

// NewCaseInstance returns false when the execution is not a root execution.
func NewCaseInstance(e CaseExecution) (CaseInstance, bool) {
	if !e.IsCaseInstance() {
		return CaseInstance{}, false
	}
	return CaseInstance{CaseExecution: e}, true
}

func (ci CaseInstance) IsCompleted() bool {
	return ci.State == StateCompleted
}

// MessageSubscription binds a message name either to a waiting event listener
// execution or, when ExecutionId is empty, to a case definition it instantiates.
type MessageSubscription struct {
	Id                string
	MessageName       string
	CaseDefinitionId  string
	CaseDefinitionKey string
	CaseInstanceId    string
	ExecutionId       string
	ActivityId        string
	CreatedAt         time.Time
}

func (s MessageSubscription) IsStartSubscription() bool {
	return s.ExecutionId == ""
}
