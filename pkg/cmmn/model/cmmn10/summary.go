package cmmn10

// CaseSummary is a flattened view of a case used by the validate command and the deployment API.
type CaseSummary struct {
	Id                string      `json:"id"`
	Name              string      `json:"name,omitempty"`
	StartMessage      string      `json:"startMessage,omitempty"`
	HistoryTimeToLive string      `json:"historyTimeToLive,omitempty"`
	PlanModel         PlanSummary `json:"planModel"`
}

type PlanSummary struct {
	Id               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	Type             ElementType   `json:"type"`
	DefinitionRef    string        `json:"definitionRef,omitempty"`
	AutoComplete     bool          `json:"autoComplete,omitempty"`
	ManualActivation string        `json:"manualActivation,omitempty"`
	Required         string        `json:"required,omitempty"`
	MessageName      string        `json:"messageName,omitempty"`
	Children         []PlanSummary `json:"children,omitempty"`
}

func (d *TDefinitions) Summary() []CaseSummary {
	res := make([]CaseSummary, 0, len(d.Cases))
	for i := range d.Cases {
		c := &d.Cases[i]
		res = append(res, CaseSummary{
			Id:                c.Id,
			Name:              c.Name,
			StartMessage:      c.StartMessage,
			HistoryTimeToLive: c.HistoryTimeToLive,
			PlanModel: PlanSummary{
				Id:           c.CasePlanModel.Id,
				Name:         c.CasePlanModel.Name,
				Type:         ElementTypeCasePlanModel,
				AutoComplete: c.CasePlanModel.AutoComplete,
				Children:     c.summarizeItems(c.CasePlanModel.PlanItems),
			},
		})
	}
	return res
}

func (c *TCase) summarizeItems(items []TPlanItem) []PlanSummary {
	res := make([]PlanSummary, 0, len(items))
	for _, pi := range items {
		def, _ := c.FindDefinition(pi.DefinitionRef)
		s := PlanSummary{
			Id:            pi.Id,
			Name:          pi.Name,
			Type:          def.Type,
			DefinitionRef: pi.DefinitionRef,
			MessageName:   def.MessageName,
		}
		if s.Name == "" {
			s.Name = def.Name
		}
		if rule := pi.ManualActivationRule(); rule != nil {
			s.ManualActivation = ruleSummary(rule)
		}
		if rule := pi.RequiredRule(); rule != nil {
			s.Required = ruleSummary(rule)
		}
		if def.Stage != nil {
			s.AutoComplete = def.Stage.AutoComplete
			s.Children = c.summarizeItems(def.Stage.PlanItems)
		}
		res = append(res, s)
	}
	return res
}

func ruleSummary(rule *TRule) string {
	if expr := rule.Expression(); expr != "" {
		return expr
	}
	return "true"
}
