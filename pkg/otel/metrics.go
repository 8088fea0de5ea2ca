package otel

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
)

type EngineMetrics struct {
	CasesStarted       metric.Int64Counter
	CasesEnded         metric.Int64Counter
	CasesRunning       metric.Int64UpDownCounter
	CommandsExecuted   metric.Int64Counter
	CommandsFailed     metric.Int64Counter
	Transitions        metric.Int64Counter
	MessagesCorrelated metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*EngineMetrics, error) {
	var errJoin error

	casesStartedTotal, err := meter.Int64Counter("cases_started", metric.WithDescription("Number of case instances started"))
	errJoin = errors.Join(errJoin, err)

	casesEndedTotal, err := meter.Int64Counter("cases_ended", metric.WithDescription("Number of case instances completed or terminated"))
	errJoin = errors.Join(errJoin, err)

	casesRunning, err := meter.Int64UpDownCounter("cases_running", metric.WithDescription("Number of case instances currently running"))
	errJoin = errors.Join(errJoin, err)

	commandsExecuted, err := meter.Int64Counter("commands_executed", metric.WithDescription("Number of engine commands executed"))
	errJoin = errors.Join(errJoin, err)

	commandsFailed, err := meter.Int64Counter("commands_failed", metric.WithDescription("Number of engine commands rolled back"))
	errJoin = errors.Join(errJoin, err)

	transitions, err := meter.Int64Counter("case_execution_transitions", metric.WithDescription("Number of case execution state transitions"))
	errJoin = errors.Join(errJoin, err)

	messagesCorrelated, err := meter.Int64Counter("messages_correlated", metric.WithDescription("Number of correlated messages"))
	errJoin = errors.Join(errJoin, err)

	metrics := EngineMetrics{
		CasesStarted:       casesStartedTotal,
		CasesEnded:         casesEndedTotal,
		CasesRunning:       casesRunning,
		CommandsExecuted:   commandsExecuted,
		CommandsFailed:     commandsFailed,
		Transitions:        transitions,
		MessagesCorrelated: messagesCorrelated,
	}
	return &metrics, errJoin
}
