package inmemory

import (
	"cmp"
	"context"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// Storage keeps case information in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	mu                   sync.RWMutex
	CaseDefinitions      map[string]runtime.CaseDefinition
	CaseExecutions       map[string]runtime.CaseExecution
	MessageSubscriptions map[string]runtime.MessageSubscription
}

func (mem *Storage) GenerateId() int64 {
	return rand.Int63()
}

func NewStorage() *Storage {
	return &Storage{
		CaseDefinitions:      make(map[string]runtime.CaseDefinition),
		CaseExecutions:       make(map[string]runtime.CaseExecution),
		MessageSubscriptions: make(map[string]runtime.MessageSubscription),
	}
}

var _ storage.Storage = &Storage{}

func (mem *Storage) NewBatch() storage.Batch {
	return &StorageBatch{
		db:        mem,
		stmtToRun: make([]func(mem *Storage), 0, 10),
	}
}

var _ storage.CaseDefinitionStorageReader = &Storage{}

func (mem *Storage) FindCaseDefinitionById(ctx context.Context, id string) (runtime.CaseDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.CaseDefinitions[id]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindLatestCaseDefinitionByKey(ctx context.Context, key string) (runtime.CaseDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var res runtime.CaseDefinition
	found := false
	for _, def := range mem.CaseDefinitions {
		if def.Key != key {
			continue
		}
		if found && def.Version < res.Version {
			continue
		}
		found = true
		res = def
	}
	if !found {
		return res, storage.ErrNotFound
	}
	return res, nil
}

func (mem *Storage) FindCaseDefinitions(ctx context.Context, criteria storage.CaseDefinitionCriteria, page storage.Page) ([]runtime.CaseDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := mem.filterCaseDefinitions(criteria)
	start, end := page.Apply(len(res))
	return res[start:end], nil
}

func (mem *Storage) CountCaseDefinitions(ctx context.Context, criteria storage.CaseDefinitionCriteria) (int64, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	return int64(len(mem.filterCaseDefinitions(criteria))), nil
}

func (mem *Storage) filterCaseDefinitions(c storage.CaseDefinitionCriteria) []runtime.CaseDefinition {
	latest := map[string]int32{}
	if c.Latest {
		for _, def := range mem.CaseDefinitions {
			latest[def.Key] = max(latest[def.Key], def.Version)
		}
	}
	res := make([]runtime.CaseDefinition, 0)
	for _, def := range mem.CaseDefinitions {
		switch {
		case c.Id != "" && def.Id != c.Id,
			c.Key != "" && def.Key != c.Key,
			c.KeyLike != "" && !storage.MatchLike(c.KeyLike, def.Key),
			c.Name != "" && def.Name != c.Name,
			c.NameLike != "" && !storage.MatchLike(c.NameLike, def.Name),
			c.Category != "" && def.Category != c.Category,
			c.CategoryLike != "" && !storage.MatchLike(c.CategoryLike, def.Category),
			c.Version > 0 && def.Version != c.Version,
			c.DeploymentId != "" && def.DeploymentId != c.DeploymentId,
			c.ResourceName != "" && def.ResourceName != c.ResourceName,
			c.ResourceNameLike != "" && !storage.MatchLike(c.ResourceNameLike, def.ResourceName),
			c.Latest && def.Version != latest[def.Key]:
			continue
		}
		res = append(res, def)
	}
	slices.SortFunc(res, func(a, b runtime.CaseDefinition) int {
		for _, o := range c.OrderBy {
			r := compareDefinitions(a, b, o.Field)
			if o.Desc {
				r = -r
			}
			if r != 0 {
				return r
			}
		}
		return strings.Compare(a.Id, b.Id)
	})
	return res
}

func compareDefinitions(a, b runtime.CaseDefinition, field storage.CaseDefinitionOrderField) int {
	switch field {
	case storage.CaseDefinitionOrderByKey:
		return strings.Compare(a.Key, b.Key)
	case storage.CaseDefinitionOrderByName:
		return strings.Compare(a.Name, b.Name)
	case storage.CaseDefinitionOrderByCategory:
		return strings.Compare(a.Category, b.Category)
	case storage.CaseDefinitionOrderByVersion:
		return cmp.Compare(a.Version, b.Version)
	case storage.CaseDefinitionOrderByDeploymentId:
		return strings.Compare(a.DeploymentId, b.DeploymentId)
	}
	return strings.Compare(a.Id, b.Id)
}

var _ storage.CaseDefinitionStorageWriter = &Storage{}

func (mem *Storage) SaveCaseDefinition(ctx context.Context, definition runtime.CaseDefinition) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	definition.Data = slices.Clone(definition.Data)
	mem.CaseDefinitions[definition.Id] = definition
	return nil
}

var _ storage.CaseExecutionStorageReader = &Storage{}

func (mem *Storage) FindCaseExecutionById(ctx context.Context, id string) (runtime.CaseExecution, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res, ok := mem.CaseExecutions[id]
	if !ok {
		return res, storage.ErrNotFound
	}
	return res.Clone(), nil
}

func (mem *Storage) FindCaseExecutionsByCaseInstanceId(ctx context.Context, caseInstanceId string) ([]runtime.CaseExecution, error) {
	return mem.FindCaseExecutions(ctx, storage.CaseExecutionCriteria{CaseInstanceId: caseInstanceId}, storage.Page{})
}

func (mem *Storage) FindCaseExecutions(ctx context.Context, criteria storage.CaseExecutionCriteria, page storage.Page) ([]runtime.CaseExecution, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := mem.filterCaseExecutions(criteria)
	start, end := page.Apply(len(res))
	res = res[start:end]
	for i := range res {
		res[i] = res[i].Clone()
	}
	return res, nil
}

func (mem *Storage) CountCaseExecutions(ctx context.Context, criteria storage.CaseExecutionCriteria) (int64, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	return int64(len(mem.filterCaseExecutions(criteria))), nil
}

func (mem *Storage) filterCaseExecutions(c storage.CaseExecutionCriteria) []runtime.CaseExecution {
	res := make([]runtime.CaseExecution, 0)
	for _, exec := range mem.CaseExecutions {
		switch {
		case c.Id != "" && exec.Id != c.Id,
			c.CaseInstanceId != "" && exec.CaseInstanceId != c.CaseInstanceId,
			c.CaseDefinitionId != "" && exec.CaseDefinitionId != c.CaseDefinitionId,
			c.CaseDefinitionKey != "" && exec.CaseDefinitionKey != c.CaseDefinitionKey,
			c.BusinessKey != "" && exec.BusinessKey != c.BusinessKey,
			c.ActivityId != "" && exec.ActivityId != c.ActivityId,
			len(c.States) > 0 && !slices.Contains(c.States, exec.State),
			c.OnlyCaseInstances && !exec.IsCaseInstance():
			continue
		}
		res = append(res, exec)
	}
	sortExecutions(res)
	return res
}

// sortExecutions orders roots before their children and otherwise by creation
func sortExecutions(execs []runtime.CaseExecution) {
	slices.SortFunc(execs, func(a, b runtime.CaseExecution) int {
		if a.IsCaseInstance() != b.IsCaseInstance() {
			if a.IsCaseInstance() {
				return -1
			}
			return 1
		}
		if r := a.CreatedAt.Compare(b.CreatedAt); r != 0 {
			return r
		}
		return strings.Compare(a.Id, b.Id)
	})
}

func (mem *Storage) FindCaseInstancesToCleanup(ctx context.Context, now time.Time, limit int) ([]runtime.CaseExecution, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.CaseExecution, 0)
	for _, exec := range mem.CaseExecutions {
		if !exec.IsCaseInstance() || exec.State != runtime.StateClosed {
			continue
		}
		if exec.RemovalTime == nil || exec.RemovalTime.After(now) {
			continue
		}
		res = append(res, exec.Clone())
	}
	slices.SortFunc(res, func(a, b runtime.CaseExecution) int {
		return a.RemovalTime.Compare(*b.RemovalTime)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

var _ storage.CaseExecutionStorageWriter = &Storage{}

func (mem *Storage) SaveCaseExecution(ctx context.Context, execution runtime.CaseExecution) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.CaseExecutions[execution.Id] = execution.Clone()
	return nil
}

func (mem *Storage) DeleteCaseExecution(ctx context.Context, id string) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	delete(mem.CaseExecutions, id)
	return nil
}

var _ storage.MessageSubscriptionStorageReader = &Storage{}

func (mem *Storage) FindMessageSubscriptions(ctx context.Context, c storage.MessageSubscriptionCriteria) ([]runtime.MessageSubscription, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.MessageSubscription, 0)
	for _, sub := range mem.MessageSubscriptions {
		switch {
		case c.MessageName != "" && sub.MessageName != c.MessageName,
			c.CaseDefinitionId != "" && sub.CaseDefinitionId != c.CaseDefinitionId,
			c.CaseInstanceId != "" && sub.CaseInstanceId != c.CaseInstanceId,
			c.ExecutionId != "" && sub.ExecutionId != c.ExecutionId,
			c.StartOnly && !sub.IsStartSubscription(),
			c.ExecutionOnly && sub.IsStartSubscription():
			continue
		}
		res = append(res, sub)
	}
	slices.SortFunc(res, func(a, b runtime.MessageSubscription) int {
		if r := a.CreatedAt.Compare(b.CreatedAt); r != 0 {
			return r
		}
		return strings.Compare(a.Id, b.Id)
	})
	return res, nil
}

var _ storage.MessageSubscriptionStorageWriter = &Storage{}

func (mem *Storage) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.MessageSubscriptions[subscription.Id] = subscription
	return nil
}

func (mem *Storage) DeleteMessageSubscription(ctx context.Context, id string) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	delete(mem.MessageSubscriptions, id)
	return nil
}

type StorageBatch struct {
	db        *Storage
	stmtToRun []func(mem *Storage)
}

var _ storage.Batch = &StorageBatch{}

// Flush applies the collected statements under one lock so readers never observe half of a batch
func (b *StorageBatch) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, stmt := range b.stmtToRun {
		stmt(b.db)
	}
	b.stmtToRun = make([]func(mem *Storage), 0)
	return nil
}

func (b *StorageBatch) Clear() {
	b.stmtToRun = make([]func(mem *Storage), 0)
}

var _ storage.CaseDefinitionStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveCaseDefinition(ctx context.Context, definition runtime.CaseDefinition) error {
	definition.Data = slices.Clone(definition.Data)
	b.stmtToRun = append(b.stmtToRun, func(mem *Storage) {
		mem.CaseDefinitions[definition.Id] = definition
	})
	return nil
}

var _ storage.CaseExecutionStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveCaseExecution(ctx context.Context, execution runtime.CaseExecution) error {
	execution = execution.Clone()
	b.stmtToRun = append(b.stmtToRun, func(mem *Storage) {
		mem.CaseExecutions[execution.Id] = execution
	})
	return nil
}

func (b *StorageBatch) DeleteCaseExecution(ctx context.Context, id string) error {
	b.stmtToRun = append(b.stmtToRun, func(mem *Storage) {
		delete(mem.CaseExecutions, id)
	})
	return nil
}

var _ storage.MessageSubscriptionStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	b.stmtToRun = append(b.stmtToRun, func(mem *Storage) {
		mem.MessageSubscriptions[subscription.Id] = subscription
	})
	return nil
}

func (b *StorageBatch) DeleteMessageSubscription(ctx context.Context, id string) error {
	b.stmtToRun = append(b.stmtToRun, func(mem *Storage) {
		delete(mem.MessageSubscriptions, id)
	})
	return nil
}
