package cmmn

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/script"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

type EngineOption = func(*Engine)

func WithExporter(exporter exporter.EventExporter) EngineOption {
	return func(engine *Engine) { engine.AddEventExporter(exporter) }
}

func WithStorage(persistence storage.Storage) EngineOption {
	return func(engine *Engine) {
		engine.persistence = persistence
	}
}

func WithName(name string) EngineOption {
	return func(engine *Engine) {
		engine.name = name
	}
}

func WithScriptRuntime(runtime script.JsRuntime) EngineOption {
	return func(engine *Engine) {
		engine.jsRuntime = runtime
	}
}

func WithLogger(logger hclog.Logger) EngineOption {
	return func(engine *Engine) {
		engine.logger = logger.Named("cmmn-engine")
	}
}

func WithTracer(tracer trace.Tracer) EngineOption {
	return func(engine *Engine) {
		engine.tracer = tracer
	}
}

// WithMeter creates the engine metrics on meter, on failure the global meter provider is used
func WithMeter(meter metric.Meter) EngineOption {
	return func(engine *Engine) {
		metrics, err := otelPkg.NewMetrics(meter)
		if err != nil {
			engine.logger.Warn("failed to create engine metrics", "err", err)
			return
		}
		engine.metrics = metrics
	}
}

func WithIdGenerator(node *snowflake.Node) EngineOption {
	return func(engine *Engine) {
		engine.snowflake = node
	}
}

// WithClock replaces the time source used for timestamps and history removal times
func WithClock(now func() time.Time) EngineOption {
	return func(engine *Engine) {
		engine.now = now
	}
}
