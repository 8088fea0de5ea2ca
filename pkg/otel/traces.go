package otel

const (
	Prefix                     = "cmmn-"
	AttributeCaseInstanceId    = Prefix + "case-instance-id"
	AttributeCaseExecutionId   = Prefix + "case-execution-id"
	AttributeCaseDefinitionId  = Prefix + "case-definition-id"
	AttributeCaseDefinitionKey = Prefix + "case-definition-key"
	AttributeActivityId        = Prefix + "activity-id"
	AttributeActivityType      = Prefix + "activity-type"
	AttributeCommand           = Prefix + "command"
	AttributeTransition        = Prefix + "transition"
	AttributeMessageName       = Prefix + "message-name"
	AttributeDeploymentId      = Prefix + "deployment-id"

	SpanStatusCaseExecution = Prefix + "execution-state"
)
