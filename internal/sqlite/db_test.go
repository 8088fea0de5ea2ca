package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbinitiative/zencmmn/internal/config"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
	"github.com/pbinitiative/zencmmn/pkg/storage/storagetest"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(t.Context(), config.Sqlite{Path: path, DefinitionCacheSize: 10, DefinitionCacheTTL: time.Minute}, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	return db
}

func TestSqliteStorage(t *testing.T) {
	var store storage.Storage = openTestDB(t, filepath.Join(t.TempDir(), "storage.db"))

	tester := storagetest.StorageTester{}

	tests := tester.GetTests()
	tester.PrepareTestData(store, t)
	for name, testFunc := range tests {
		t.Run(name, testFunc(store, t))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(t.Context(), config.Sqlite{Path: "  "}, nil)
	assert.ErrorContains(t, err, "sqlite path is required")
}

func TestMigrationsAreAppliedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	def := runtime.CaseDefinition{Id: "case:1:1", Key: "case", Version: 1, Data: []byte("<definitions/>")}

	db, err := Open(t.Context(), config.Sqlite{Path: path}, hclog.NewNullLogger())
	require.NoError(t, err)
	require.NoError(t, db.SaveCaseDefinition(t.Context(), def))
	require.NoError(t, db.Close())

	reopened := openTestDB(t, path)
	stored, err := reopened.FindCaseDefinitionById(t.Context(), def.Id)
	require.NoError(t, err)
	assert.Equal(t, def.Data, stored.Data)

	count, err := reopened.count(t.Context(), "SELECT COUNT(*) FROM "+migrationTable, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSavingDefinitionInvalidatesCache(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "cache.db"))
	def := runtime.CaseDefinition{Id: "case:1:1", Key: "case", Version: 1, Name: "before"}
	require.NoError(t, db.SaveCaseDefinition(t.Context(), def))

	_, err := db.FindCaseDefinitionById(t.Context(), def.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, db.defCache.Len())

	def.Name = "after"
	batch := db.NewBatch()
	require.NoError(t, batch.SaveCaseDefinition(t.Context(), def))
	require.NoError(t, batch.Flush(t.Context()))

	stored, err := db.FindCaseDefinitionById(t.Context(), def.Id)
	require.NoError(t, err)
	assert.Equal(t, "after", stored.Name)
}

func TestFailedBatchRollsBack(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "rollback.db"))
	require.NoError(t, db.SaveCaseDefinition(t.Context(), runtime.CaseDefinition{Id: "a:1:1", Key: "a", Version: 1}))

	batch := db.NewBatch()
	require.NoError(t, batch.SaveCaseExecution(t.Context(), runtime.CaseExecution{Id: "1", CaseInstanceId: "1", CreatedAt: time.Now()}))
	// same key and version under a different id violates the unique constraint
	require.NoError(t, batch.SaveCaseDefinition(t.Context(), runtime.CaseDefinition{Id: "a:1:2", Key: "a", Version: 1}))
	err := batch.Flush(t.Context())
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))

	_, err = db.FindCaseExecutionById(t.Context(), "1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
