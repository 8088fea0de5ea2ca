package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/pbinitiative/zencmmn/internal/config"
)

func TestNewRequestMetrics(t *testing.T) {
	m, err := NewRequestMetrics(noop.NewMeterProvider().Meter(requestMeter))
	require.NoError(t, err)
	assert.NotNil(t, m.RequestTotal)
	assert.NotNil(t, m.RequestDuration)
}

func TestSetupOtelWithoutTracing(t *testing.T) {
	o, err := SetupOtel(config.Tracing{Name: "zencmmn-test"})
	require.NoError(t, err)
	defer o.Stop(t.Context())

	assert.NotNil(t, o.Requests)
	assert.Nil(t, o.tracerprovider)
}

func TestTraceEndpoint(t *testing.T) {
	tests := map[string]struct {
		endpoint string
		host     string
		insecure bool
	}{
		"plain": {endpoint: "localhost:4318", host: "localhost:4318", insecure: true},
		"http":  {endpoint: "http://collector:4318", host: "collector:4318", insecure: true},
		"https": {endpoint: "https://collector.example.com", host: "collector.example.com", insecure: false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			host, insecure := traceEndpoint(test.endpoint)
			assert.Equal(t, test.host, host)
			assert.Equal(t, test.insecure, insecure)
		})
	}
}

func TestTraceSampler(t *testing.T) {
	assert.Contains(t, traceSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, traceSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, traceSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestSetupOtelWithTracing(t *testing.T) {
	o, err := SetupOtel(config.Tracing{Name: "zencmmn-test", Enabled: true, Endpoint: "http://localhost:4318", SampleRatio: 1})
	require.NoError(t, err)
	defer o.Stop(t.Context())

	assert.NotNil(t, o.tracerprovider)
}
