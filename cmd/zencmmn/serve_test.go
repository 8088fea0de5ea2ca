package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/zencmmn/internal/config"
)

func TestNewEngineWithSqliteStorage(t *testing.T) {
	conf := config.Config{
		Name: "zencmmn-cli-test",
		Persistence: config.Persistence{
			Type:   config.PersistenceSqlite,
			Sqlite: config.Sqlite{Path: filepath.Join(t.TempDir(), "cli.db"), DefinitionCacheSize: 10, DefinitionCacheTTL: time.Minute},
		},
		Script:   config.Script{MinVms: 1, MaxVms: 1},
		Exporter: config.Exporter{Log: true},
	}

	engine, closeEngine, err := newEngine(t.Context(), conf, hclog.NewNullLogger())
	require.NoError(t, err)
	defer closeEngine()

	assert.Equal(t, "zencmmn-cli-test", engine.Name())
	res, err := engine.DeployFile(t.Context(), "../../pkg/cmmn/test-cases/simple_case.cmmn")
	require.NoError(t, err)
	require.Len(t, res.Definitions, 1)

	ci, err := engine.CaseService().CreateCaseInstanceByKey("simple_case").Create(t.Context())
	require.NoError(t, err)
	count, err := engine.CaseService().CreateCaseExecutionQuery().CaseInstanceId(ci.Id).Count(t.Context())
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestCleanupHistoryStopsWithContext(t *testing.T) {
	engine, closeEngine, err := newEngine(t.Context(), config.Config{
		Persistence: config.Persistence{Type: config.PersistenceMemory},
		Script:      config.Script{MinVms: 1, MaxVms: 1},
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	defer closeEngine()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		cleanupHistory(ctx, engine, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("history cleanup did not stop")
	}
}
