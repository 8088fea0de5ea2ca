package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	c, err := Load("testdata/conf.yaml")
	require.NoError(t, err)

	assert.Equal(t, "zencmmn-test", c.Name)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "/", c.Server.Context)
	assert.True(t, c.Server.DisableValidation)
	assert.Equal(t, PersistenceSqlite, c.Persistence.Type)
	assert.Equal(t, "/tmp/zencmmn-test.db", c.Persistence.Sqlite.Path)
	assert.Equal(t, 50, c.Persistence.Sqlite.DefinitionCacheSize)
	assert.Equal(t, time.Hour, c.Persistence.Sqlite.DefinitionCacheTTL)
	assert.Equal(t, 2, c.Script.MaxVms)
	assert.Equal(t, 10*time.Minute, c.History.CleanupInterval)
	assert.Equal(t, "zencmmn-test", c.Tracing.Name)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REST_API_ADDR", ":7070")
	t.Setenv("PERSISTENCE_TYPE", "memory")

	c, err := Load("testdata/missing.yaml")
	require.NoError(t, err)

	assert.Equal(t, ":7070", c.Server.Addr)
	assert.False(t, c.Server.DisableValidation)
	assert.Equal(t, PersistenceMemory, c.Persistence.Type)
	assert.Equal(t, 1, c.Script.MinVms)
	assert.Equal(t, 4, c.Script.MaxVms)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	err := Config{
		Persistence: Persistence{Type: "postgres"},
		History:     History{CleanupInterval: -time.Second},
	}.Validate()

	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown persistence type "postgres"`)
	assert.ErrorContains(t, err, "script.minVms must be at least 1")
	assert.ErrorContains(t, err, "history.cleanupInterval must not be negative")
}
