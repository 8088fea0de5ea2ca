package cmmn

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/exporter"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	otelPkg "github.com/pbinitiative/zencmmn/pkg/otel"
	"github.com/pbinitiative/zencmmn/pkg/script"
	"github.com/pbinitiative/zencmmn/pkg/script/js"
	"github.com/pbinitiative/zencmmn/pkg/storage"
	"github.com/pbinitiative/zencmmn/pkg/storage/inmemory"
	"github.com/pbinitiative/zencmmn/pkg/zenflake"
)

const (
	caseModelCacheSize = 200
	caseModelCacheTTL  = time.Hour
)

type Engine struct {
	name             string
	persistence      storage.Storage
	exporters        []exporter.EventExporter
	snowflake        *snowflake.Node
	logger           hclog.Logger
	tracer           trace.Tracer
	metrics          *otelPkg.EngineMetrics
	runningInstances *RunningInstancesCache
	caseModels       *expirable.LRU[string, *cmmn10.TCase]
	commandExecutor  *CommandExecutor
	deployMu         sync.Mutex
	now              func() time.Time

	jsRuntime     script.JsRuntime
	jsRuntimeOnce sync.Once
	jsRuntimeErr  error
}

// NewEngine creates a new instance of the CMMN Engine;
// without WithStorage the engine keeps its state in memory
func NewEngine(options ...EngineOption) *Engine {
	node := zenflake.GlobalNode()
	engine := &Engine{
		name:             fmt.Sprintf("Cmmn-Engine-%d", node.Generate().Int64()),
		exporters:        []exporter.EventExporter{},
		snowflake:        node,
		logger:           hclog.Default().Named("cmmn-engine"),
		tracer:           otel.GetTracerProvider().Tracer("zencmmn-engine"),
		runningInstances: NewRunningInstancesCache(),
		caseModels:       expirable.NewLRU[string, *cmmn10.TCase](caseModelCacheSize, nil, caseModelCacheTTL),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}

	for _, option := range options {
		option(engine)
	}

	if engine.persistence == nil {
		engine.persistence = inmemory.NewStorage()
	}
	if engine.metrics == nil {
		metrics, err := otelPkg.NewMetrics(otel.GetMeterProvider().Meter("zencmmn-engine"))
		if err != nil {
			engine.logger.Warn("failed to create engine metrics", "err", err)
		}
		engine.metrics = metrics
	}
	engine.commandExecutor = &CommandExecutor{engine: engine}
	return engine
}

func (engine *Engine) Name() string {
	return engine.name
}

// Persistence returns the storage the engine works on
func (engine *Engine) Persistence() storage.Storage {
	return engine.persistence
}

func (engine *Engine) CommandExecutor() *CommandExecutor {
	return engine.commandExecutor
}

func (engine *Engine) CaseService() *CaseService {
	return &CaseService{engine: engine}
}

func (engine *Engine) RepositoryService() *RepositoryService {
	return &RepositoryService{engine: engine}
}

// AddEventExporter registers an EventExporter instance
func (engine *Engine) AddEventExporter(exporter exporter.EventExporter) {
	engine.exporters = append(engine.exporters, exporter)
}

func (engine *Engine) generateId() string {
	return strconv.FormatInt(engine.snowflake.Generate().Int64(), 10)
}

// scriptRuntime returns the configured runtime or lazily starts a small default pool
func (engine *Engine) scriptRuntime() (script.JsRuntime, error) {
	engine.jsRuntimeOnce.Do(func() {
		if engine.jsRuntime != nil {
			return
		}
		engine.jsRuntime, engine.jsRuntimeErr = js.NewJsRuntime(context.Background(), 4, 1)
	})
	return engine.jsRuntime, engine.jsRuntimeErr
}

// loadCaseModel returns the parsed case of a definition
func (engine *Engine) loadCaseModel(definition runtime.CaseDefinition) (*cmmn10.TCase, error) {
	if c, ok := engine.caseModels.Get(definition.Id); ok {
		return c, nil
	}
	definitions, err := cmmn10.Unmarshal(definition.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse case definition %s: %w", definition.Id, err)
	}
	c, ok := definitions.FindCase(definition.Key)
	if !ok {
		return nil, newEngineErrorf("case %s not found in resource of case definition %s", definition.Key, definition.Id)
	}
	engine.caseModels.Add(definition.Id, c)
	return c, nil
}
