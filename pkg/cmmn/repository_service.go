package cmmn

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/model/cmmn10"
	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

// RepositoryService gives access to deployed case definitions
type RepositoryService struct {
	engine *Engine
}

func (s *RepositoryService) CreateCaseDefinitionQuery() *CaseDefinitionQuery {
	return newCaseDefinitionQuery(s.engine)
}

func (s *RepositoryService) GetCaseDefinition(ctx context.Context, caseDefinitionId string) (runtime.CaseDefinition, error) {
	d, err := s.engine.persistence.FindCaseDefinitionById(ctx, caseDefinitionId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return d, newNotFoundErrorf("No case definition found for id '%s'", caseDefinitionId)
		}
		return d, fmt.Errorf("failed to load case definition %s: %w", caseDefinitionId, err)
	}
	return d, nil
}

// GetCaseModel returns the parsed case of a deployed definition
func (s *RepositoryService) GetCaseModel(ctx context.Context, caseDefinitionId string) (*cmmn10.TCase, error) {
	d, err := s.GetCaseDefinition(ctx, caseDefinitionId)
	if err != nil {
		return nil, err
	}
	return s.engine.loadCaseModel(d)
}

func (s *RepositoryService) Deploy(ctx context.Context, resourceName string, data []byte) (DeploymentResult, error) {
	return s.engine.Deploy(ctx, resourceName, data)
}
