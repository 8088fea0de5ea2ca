package storagetest

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	stdruntime "runtime"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type StorageTestFunc func(s storage.Storage, t *testing.T) func(t *testing.T)

type StorageTester struct {
	caseDefinition runtime.CaseDefinition
	caseInstance   runtime.CaseExecution
}

func (st *StorageTester) GetTests() map[string]StorageTestFunc {
	tests := map[string]StorageTestFunc{}

	// all test functions need to be registered here
	functions := []StorageTestFunc{
		st.TestCaseDefinitionStorageWriter,
		st.TestCaseDefinitionStorageReader,
		st.TestCaseDefinitionCriteria,
		st.TestCaseExecutionStorageWriter,
		st.TestCaseExecutionStorageReader,
		st.TestCaseInstancesToCleanup,
		st.TestMessageSubscriptionStorage,
		st.TestBatchClear,
	}

	for _, function := range functions {
		funcName := getFunctionName(function)
		strippedName := funcName[strings.LastIndex(funcName, ".")+1:]
		strippedName = strings.TrimSuffix(strippedName, "-fm")
		tests[strippedName] = function
	}
	return tests
}

func getFunctionName(i any) string {
	return stdruntime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

func getCaseDefinition(r int64, key string, version int32) runtime.CaseDefinition {
	data := `<?xml version="1.0" encoding="UTF-8"?><definitions targetNamespace="ns-%d"><case id="%s"></case></definitions>`
	return runtime.CaseDefinition{
		Id:           fmt.Sprintf("%s:%d:%d", key, version, r),
		Key:          key,
		Name:         fmt.Sprintf("name-%s", key),
		Category:     fmt.Sprintf("category-%d", r),
		Version:      version,
		DeploymentId: fmt.Sprintf("deployment-%d", r),
		ResourceName: fmt.Sprintf("resource-%d.cmmn", r),
		Checksum:     fmt.Sprintf("%040d", r),
		Data:         []byte(fmt.Sprintf(data, r, key)),
	}
}

func getCaseInstance(r int64, def runtime.CaseDefinition) runtime.CaseExecution {
	id := fmt.Sprintf("%d", r)
	return runtime.CaseExecution{
		Id:                id,
		CaseInstanceId:    id,
		CaseDefinitionId:  def.Id,
		CaseDefinitionKey: def.Key,
		BusinessKey:       fmt.Sprintf("bk-%d", r),
		ActivityId:        "CasePlanModel_1",
		ActivityType:      runtime.ActivityTypeCasePlanModel,
		State:             runtime.StateActive,
		Variables:         map[string]any{"amount": int64(r % 1000), "name": "test"},
		CreatedAt:         time.Now().UTC().Truncate(time.Millisecond),
	}
}

func getChildExecution(r int64, parent runtime.CaseExecution, activityId string, state runtime.CaseExecutionState) runtime.CaseExecution {
	return runtime.CaseExecution{
		Id:                fmt.Sprintf("%d", r),
		CaseInstanceId:    parent.CaseInstanceId,
		ParentId:          parent.Id,
		CaseDefinitionId:  parent.CaseDefinitionId,
		CaseDefinitionKey: parent.CaseDefinitionKey,
		BusinessKey:       parent.BusinessKey,
		ActivityId:        activityId,
		ActivityType:      runtime.ActivityTypeHumanTask,
		State:             state,
		Variables:         map[string]any{},
		CreatedAt:         parent.CreatedAt.Add(time.Millisecond),
	}
}

// PrepareTestData will prepare common data for the tests
func (st *StorageTester) PrepareTestData(s storage.Storage, t *testing.T) {
	r := s.GenerateId()

	st.caseDefinition = getCaseDefinition(r, fmt.Sprintf("case-%d", r), 1)
	err := s.SaveCaseDefinition(t.Context(), st.caseDefinition)
	require.NoError(t, err)

	st.caseInstance = getCaseInstance(r, st.caseDefinition)
	err = s.SaveCaseExecution(t.Context(), st.caseInstance)
	require.NoError(t, err)
}

func (st *StorageTester) TestCaseDefinitionStorageWriter(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		def := getCaseDefinition(r, fmt.Sprintf("writer-%d", r), 1)

		batch := s.NewBatch()
		err := batch.SaveCaseDefinition(t.Context(), def)
		assert.NoError(t, err)

		_, err = s.FindCaseDefinitionById(t.Context(), def.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = batch.Flush(t.Context())
		assert.NoError(t, err)

		definition, err := s.FindCaseDefinitionById(t.Context(), def.Id)
		assert.NoError(t, err)
		assert.Equal(t, def.Key, definition.Key)
		assert.Equal(t, def.Data, definition.Data)
		assert.Equal(t, def.Checksum, definition.Checksum)
	}
}

func (st *StorageTester) TestCaseDefinitionStorageReader(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		key := fmt.Sprintf("reader-%d", r)
		for v := int32(1); v <= 3; v++ {
			err := s.SaveCaseDefinition(t.Context(), getCaseDefinition(r+int64(v), key, v))
			assert.NoError(t, err)
		}

		latest, err := s.FindLatestCaseDefinitionByKey(t.Context(), key)
		assert.NoError(t, err)
		assert.Equal(t, int32(3), latest.Version)

		_, err = s.FindLatestCaseDefinitionByKey(t.Context(), "missing-"+key)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.FindCaseDefinitionById(t.Context(), "missing-"+key)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		definition, err := s.FindCaseDefinitionById(t.Context(), st.caseDefinition.Id)
		assert.NoError(t, err)
		assert.Equal(t, st.caseDefinition.Name, definition.Name)
	}
}

func (st *StorageTester) TestCaseDefinitionCriteria(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		prefix := fmt.Sprintf("criteria-%d", r)
		keyA := prefix + "-a"
		keyB := prefix + "-b"
		for v := int32(1); v <= 2; v++ {
			assert.NoError(t, s.SaveCaseDefinition(t.Context(), getCaseDefinition(r+int64(v), keyA, v)))
		}
		assert.NoError(t, s.SaveCaseDefinition(t.Context(), getCaseDefinition(r+10, keyB, 1)))

		defs, err := s.FindCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{KeyLike: prefix + "%"}, storage.Page{})
		assert.NoError(t, err)
		assert.Len(t, defs, 3)

		defs, err = s.FindCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{KeyLike: prefix + "%", Latest: true}, storage.Page{})
		assert.NoError(t, err)
		assert.Len(t, defs, 2)
		for _, def := range defs {
			if def.Key == keyA {
				assert.Equal(t, int32(2), def.Version)
			}
		}

		defs, err = s.FindCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{
			Key:     keyA,
			OrderBy: []storage.OrderBy{{Field: storage.CaseDefinitionOrderByVersion, Desc: true}},
		}, storage.Page{})
		assert.NoError(t, err)
		assert.Len(t, defs, 2)
		assert.Equal(t, int32(2), defs[0].Version)
		assert.Equal(t, int32(1), defs[1].Version)

		defs, err = s.FindCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{
			KeyLike: prefix + "%",
			OrderBy: []storage.OrderBy{{Field: storage.CaseDefinitionOrderByKey}, {Field: storage.CaseDefinitionOrderByVersion}},
		}, storage.Page{FirstResult: 1, MaxResults: 1})
		assert.NoError(t, err)
		assert.Len(t, defs, 1)
		assert.Equal(t, keyA, defs[0].Key)
		assert.Equal(t, int32(2), defs[0].Version)

		count, err := s.CountCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{KeyLike: prefix + "-_", Version: 1})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = s.CountCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{NameLike: "name-" + prefix + "%", ResourceNameLike: "%.cmmn"})
		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = s.CountCaseDefinitions(t.Context(), storage.CaseDefinitionCriteria{KeyLike: strings.ToUpper(prefix) + "%"})
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count, "like matching is case sensitive")
	}
}

func (st *StorageTester) TestCaseExecutionStorageWriter(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		instance := getCaseInstance(r, st.caseDefinition)
		child := getChildExecution(r+1, instance, "PI_Task", runtime.StateEnabled)
		child.Variables["local"] = "value"

		batch := s.NewBatch()
		assert.NoError(t, batch.SaveCaseExecution(t.Context(), instance))
		assert.NoError(t, batch.SaveCaseExecution(t.Context(), child))
		assert.NoError(t, batch.Flush(t.Context()))

		stored, err := s.FindCaseExecutionById(t.Context(), child.Id)
		assert.NoError(t, err)
		assert.Equal(t, instance.Id, stored.ParentId)
		assert.Equal(t, runtime.StateEnabled, stored.State)
		assert.Equal(t, "value", stored.Variables["local"])

		stored.Variables["local"] = "changed"
		again, err := s.FindCaseExecutionById(t.Context(), child.Id)
		assert.NoError(t, err)
		assert.Equal(t, "value", again.Variables["local"], "stored executions are not shared with callers")

		batch = s.NewBatch()
		assert.NoError(t, batch.DeleteCaseExecution(t.Context(), child.Id))
		assert.NoError(t, batch.Flush(t.Context()))
		_, err = s.FindCaseExecutionById(t.Context(), child.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestCaseExecutionStorageReader(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		instance := getCaseInstance(r, st.caseDefinition)
		enabled := getChildExecution(r+1, instance, "PI_Enabled", runtime.StateEnabled)
		active := getChildExecution(r+2, instance, "PI_Active", runtime.StateActive)
		for _, e := range []runtime.CaseExecution{active, enabled, instance} {
			assert.NoError(t, s.SaveCaseExecution(t.Context(), e))
		}

		tree, err := s.FindCaseExecutionsByCaseInstanceId(t.Context(), instance.Id)
		assert.NoError(t, err)
		assert.Len(t, tree, 3)
		assert.Equal(t, instance.Id, tree[0].Id)
		assert.Equal(t, int64(r%1000), tree[0].Variables["amount"])

		execs, err := s.FindCaseExecutions(t.Context(), storage.CaseExecutionCriteria{
			CaseInstanceId: instance.Id,
			States:         []runtime.CaseExecutionState{runtime.StateEnabled},
		}, storage.Page{})
		assert.NoError(t, err)
		assert.Len(t, execs, 1)
		assert.Equal(t, enabled.Id, execs[0].Id)

		execs, err = s.FindCaseExecutions(t.Context(), storage.CaseExecutionCriteria{
			BusinessKey:       instance.BusinessKey,
			OnlyCaseInstances: true,
		}, storage.Page{})
		assert.NoError(t, err)
		assert.Len(t, execs, 1)

		count, err := s.CountCaseExecutions(t.Context(), storage.CaseExecutionCriteria{CaseInstanceId: instance.Id, ActivityId: "PI_Active"})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)

		_, err = s.FindCaseExecutionById(t.Context(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestCaseInstancesToCleanup(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		now := time.Now().UTC().Truncate(time.Millisecond)
		past := now.Add(-time.Hour)
		future := now.Add(time.Hour)

		due := getCaseInstance(r, st.caseDefinition)
		due.State = runtime.StateClosed
		due.RemovalTime = &past
		notDue := getCaseInstance(r+1, st.caseDefinition)
		notDue.State = runtime.StateClosed
		notDue.RemovalTime = &future
		notClosed := getCaseInstance(r+2, st.caseDefinition)
		notClosed.State = runtime.StateCompleted
		notClosed.RemovalTime = &past
		for _, e := range []runtime.CaseExecution{due, notDue, notClosed} {
			assert.NoError(t, s.SaveCaseExecution(t.Context(), e))
		}

		res, err := s.FindCaseInstancesToCleanup(t.Context(), now, 0)
		assert.NoError(t, err)
		ids := make([]string, 0, len(res))
		for _, e := range res {
			ids = append(ids, e.Id)
		}
		assert.Contains(t, ids, due.Id)
		assert.NotContains(t, ids, notDue.Id)
		assert.NotContains(t, ids, notClosed.Id)
	}
}

func (st *StorageTester) TestMessageSubscriptionStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		name := fmt.Sprintf("message-%d", r)
		start := runtime.MessageSubscription{
			Id:                fmt.Sprintf("%d", r),
			MessageName:       name,
			CaseDefinitionId:  st.caseDefinition.Id,
			CaseDefinitionKey: st.caseDefinition.Key,
			CreatedAt:         time.Now().UTC(),
		}
		waiting := runtime.MessageSubscription{
			Id:                fmt.Sprintf("%d", r+1),
			MessageName:       name,
			CaseDefinitionId:  st.caseDefinition.Id,
			CaseDefinitionKey: st.caseDefinition.Key,
			CaseInstanceId:    st.caseInstance.Id,
			ExecutionId:       fmt.Sprintf("%d", r+2),
			ActivityId:        "PI_Listener",
			CreatedAt:         time.Now().UTC(),
		}
		batch := s.NewBatch()
		assert.NoError(t, batch.SaveMessageSubscription(t.Context(), start))
		assert.NoError(t, batch.SaveMessageSubscription(t.Context(), waiting))
		assert.NoError(t, batch.Flush(t.Context()))

		subs, err := s.FindMessageSubscriptions(t.Context(), storage.MessageSubscriptionCriteria{MessageName: name})
		assert.NoError(t, err)
		assert.Len(t, subs, 2)

		subs, err = s.FindMessageSubscriptions(t.Context(), storage.MessageSubscriptionCriteria{MessageName: name, StartOnly: true})
		assert.NoError(t, err)
		assert.Len(t, subs, 1)
		assert.True(t, subs[0].IsStartSubscription())

		subs, err = s.FindMessageSubscriptions(t.Context(), storage.MessageSubscriptionCriteria{MessageName: name, ExecutionOnly: true, CaseInstanceId: st.caseInstance.Id})
		assert.NoError(t, err)
		assert.Len(t, subs, 1)
		assert.Equal(t, waiting.ExecutionId, subs[0].ExecutionId)

		assert.NoError(t, s.DeleteMessageSubscription(t.Context(), start.Id))
		subs, err = s.FindMessageSubscriptions(t.Context(), storage.MessageSubscriptionCriteria{MessageName: name})
		assert.NoError(t, err)
		assert.Len(t, subs, 1)
	}
}

func (st *StorageTester) TestBatchClear(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		r := s.GenerateId()
		instance := getCaseInstance(r, st.caseDefinition)

		batch := s.NewBatch()
		assert.NoError(t, batch.SaveCaseExecution(t.Context(), instance))
		batch.Clear()
		assert.NoError(t, batch.Flush(t.Context()))

		_, err := s.FindCaseExecutionById(t.Context(), instance.Id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}
