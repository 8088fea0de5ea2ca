package runtime

// CaseExecutionState as per CMMN 1.1, section 8.4.2, plan item lifecycles:
//
//	             create
//	               |
//	               v
//	         ┌───────────┐  enable   ┌─────────┐  disable  ┌──────────┐
//	         │ AVAILABLE │---------->│ ENABLED │---------->│ DISABLED │
//	         └───────────┘           └─────────┘<----------└──────────┘
//	               |                      |        reenable
//	         start |          manualStart |
//	               v                      v
//	         ┌──────────┐  suspend   ┌───────────┐
//	         │  ACTIVE  │<---------->│ SUSPENDED │
//	         └──────────┘   resume   └───────────┘
//	           |      |
//	  complete |      | terminate / fault
//	           v      v
//	  ┌───────────┐ ┌────────────┐ ┌────────┐
//	  │ COMPLETED │ │ TERMINATED │ │ FAILED │
//	  └───────────┘ └────────────┘ └────────┘
//	           \      /
//	      close \    / (case instance only)
//	             v  v
//	          ┌────────┐
//	          │ CLOSED │
//	          └────────┘
type CaseExecutionState string

const (
	StateAvailable  CaseExecutionState = "AVAILABLE"
	StateEnabled    CaseExecutionState = "ENABLED"
	StateDisabled   CaseExecutionState = "DISABLED"
	StateActive     CaseExecutionState = "ACTIVE"
	StateSuspended  CaseExecutionState = "SUSPENDED"
	StateCompleted  CaseExecutionState = "COMPLETED"
	StateTerminated CaseExecutionState = "TERMINATED"
	StateFailed     CaseExecutionState = "FAILED"
	StateClosed     CaseExecutionState = "CLOSED"
)

var AllStates = []CaseExecutionState{
	StateAvailable,
	StateEnabled,
	StateDisabled,
	StateActive,
	StateSuspended,
	StateCompleted,
	StateTerminated,
	StateFailed,
	StateClosed,
}

// IsFinished reports whether no further work happens in the state.
func (s CaseExecutionState) IsFinished() bool {
	switch s {
	case StateCompleted, StateTerminated, StateFailed, StateClosed:
		return true
	}
	return false
}

func ParseState(s string) (CaseExecutionState, bool) {
	for _, st := range AllStates {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
