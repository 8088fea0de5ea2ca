package cmmn10

import (
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/senseyeio/duration"
)

// Unmarshal parses and validates a CMMN resource.
func Unmarshal(data []byte) (TDefinitions, error) {
	var definitions TDefinitions
	if err := xml.Unmarshal(data, &definitions); err != nil {
		return definitions, fmt.Errorf("failed to unmarshal xml data: %w", err)
	}
	if err := definitions.Validate(); err != nil {
		return definitions, err
	}
	return definitions, nil
}

func (d *TDefinitions) FindCase(id string) (*TCase, bool) {
	for i := range d.Cases {
		if d.Cases[i].Id == id {
			return &d.Cases[i], true
		}
	}
	return nil, false
}

// definitions returns the plan item definitions declared directly in the stage.
func (s *TStage) definitions() []PlanItemDefinition {
	res := make([]PlanItemDefinition, 0)
	for i := range s.Stages {
		st := &s.Stages[i]
		res = append(res, PlanItemDefinition{Id: st.Id, Name: st.Name, Type: ElementTypeStage, Blocking: true, Stage: st})
	}
	for _, group := range []struct {
		tasks []TTask
		t     ElementType
	}{
		{s.HumanTasks, ElementTypeHumanTask},
		{s.Tasks, ElementTypeTask},
		{s.ProcessTasks, ElementTypeProcessTask},
		{s.CaseTasks, ElementTypeCaseTask},
	} {
		for _, task := range group.tasks {
			res = append(res, PlanItemDefinition{Id: task.Id, Name: task.Name, Type: group.t, Blocking: task.Blocking()})
		}
	}
	for _, el := range s.EventListeners {
		res = append(res, PlanItemDefinition{Id: el.Id, Name: el.Name, Type: ElementTypeEventListener, MessageName: el.MessageName})
	}
	return res
}

func (s *TStage) walk(fn func(stage *TStage)) {
	fn(s)
	for i := range s.Stages {
		s.Stages[i].walk(fn)
	}
}

// FindDefinition resolves a definitionRef anywhere in the case.
func (c *TCase) FindDefinition(ref string) (PlanItemDefinition, bool) {
	var res PlanItemDefinition
	found := false
	c.CasePlanModel.walk(func(stage *TStage) {
		if found {
			return
		}
		for _, def := range stage.definitions() {
			if def.Id == ref {
				res = def
				found = true
				return
			}
		}
	})
	return res, found
}

// FindPlanItem returns the plan item with given id anywhere in the case.
func (c *TCase) FindPlanItem(id string) (*TPlanItem, bool) {
	var res *TPlanItem
	c.CasePlanModel.walk(func(stage *TStage) {
		if res != nil {
			return
		}
		for i := range stage.PlanItems {
			if stage.PlanItems[i].Id == id {
				res = &stage.PlanItems[i]
				return
			}
		}
	})
	return res, res != nil
}

// PlanItemsOf returns the plan items instantiated when an execution of activityId is started.
// activityId is either the case plan model id or the id of a plan item referencing a stage.
func (c *TCase) PlanItemsOf(activityId string) ([]TPlanItem, error) {
	if activityId == c.CasePlanModel.Id {
		return c.CasePlanModel.PlanItems, nil
	}
	pi, ok := c.FindPlanItem(activityId)
	if !ok {
		return nil, fmt.Errorf("plan item %s not found in case %s", activityId, c.Id)
	}
	def, ok := c.FindDefinition(pi.DefinitionRef)
	if !ok || def.Stage == nil {
		return nil, fmt.Errorf("plan item %s does not reference a stage", activityId)
	}
	return def.Stage.PlanItems, nil
}

// StageOf returns the stage definition behind activityId, see PlanItemsOf.
func (c *TCase) StageOf(activityId string) (*TStage, bool) {
	if activityId == c.CasePlanModel.Id {
		return &c.CasePlanModel, true
	}
	pi, ok := c.FindPlanItem(activityId)
	if !ok {
		return nil, false
	}
	def, ok := c.FindDefinition(pi.DefinitionRef)
	if !ok || def.Stage == nil {
		return nil, false
	}
	return def.Stage, true
}

// Validate checks that the definitions can be executed.
func (d *TDefinitions) Validate() error {
	if len(d.Cases) == 0 {
		return errors.New("definitions do not contain any case")
	}
	var errs []error
	caseIds := map[string]bool{}
	for i := range d.Cases {
		c := &d.Cases[i]
		if c.Id == "" {
			errs = append(errs, errors.New("case without id"))
			continue
		}
		if caseIds[c.Id] {
			errs = append(errs, fmt.Errorf("duplicate case id %s", c.Id))
		}
		caseIds[c.Id] = true
		errs = append(errs, c.validate()...)
	}
	return errors.Join(errs...)
}

func (c *TCase) validate() []error {
	var errs []error
	if c.HistoryTimeToLive != "" {
		if _, err := duration.ParseISO8601(c.HistoryTimeToLive); err != nil {
			errs = append(errs, fmt.Errorf("case %s: invalid historyTimeToLive %q: %w", c.Id, c.HistoryTimeToLive, err))
		}
	}
	if c.CasePlanModel.Id == "" {
		errs = append(errs, fmt.Errorf("case %s: casePlanModel without id", c.Id))
	}
	ids := map[string]bool{c.Id: true}
	c.CasePlanModel.walk(func(stage *TStage) {
		check := func(id string) {
			if id == "" {
				errs = append(errs, fmt.Errorf("case %s: element without id", c.Id))
				return
			}
			if ids[id] {
				errs = append(errs, fmt.Errorf("case %s: duplicate element id %s", c.Id, id))
			}
			ids[id] = true
		}
		if stage == &c.CasePlanModel {
			check(stage.Id)
		}
		for _, def := range stage.definitions() {
			check(def.Id)
		}
		for _, pi := range stage.PlanItems {
			check(pi.Id)
			if _, ok := c.FindDefinition(pi.DefinitionRef); !ok {
				errs = append(errs, fmt.Errorf("case %s: plan item %s references unknown definition %q", c.Id, pi.Id, pi.DefinitionRef))
			}
		}
	})
	if err := c.checkStageCycles(&c.CasePlanModel, map[string]bool{}); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *TCase) checkStageCycles(stage *TStage, path map[string]bool) error {
	if path[stage.Id] {
		return fmt.Errorf("case %s: stage %s contains itself", c.Id, stage.Id)
	}
	path[stage.Id] = true
	defer delete(path, stage.Id)
	for _, pi := range stage.PlanItems {
		def, ok := c.FindDefinition(pi.DefinitionRef)
		if !ok || def.Stage == nil {
			continue
		}
		if err := c.checkStageCycles(def.Stage, path); err != nil {
			return err
		}
	}
	return nil
}
