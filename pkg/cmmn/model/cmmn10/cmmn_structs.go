package cmmn10

import (
	"encoding/xml"
	"strings"
)

type ElementType string

const (
	ElementTypeCasePlanModel ElementType = "casePlanModel"
	ElementTypeStage         ElementType = "stage"
	ElementTypeHumanTask     ElementType = "humanTask"
	ElementTypeTask          ElementType = "task"
	ElementTypeProcessTask   ElementType = "processTask"
	ElementTypeCaseTask      ElementType = "caseTask"
	ElementTypeEventListener ElementType = "eventListener"
)

type TDefinitions struct {
	XMLName         xml.Name `xml:"definitions"`
	Id              string   `xml:"id,attr"`
	Name            string   `xml:"name,attr"`
	TargetNamespace string   `xml:"targetNamespace,attr"`
	Cases           []TCase  `xml:"case"`
}

type TCase struct {
	Id                string `xml:"id,attr"`
	Name              string `xml:"name,attr"`
	StartMessage      string `xml:"startMessage,attr"`
	HistoryTimeToLive string `xml:"historyTimeToLive,attr"`
	CasePlanModel     TStage `xml:"casePlanModel"`
}

type TPlanItemDefinition struct {
	Id   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

type TStage struct {
	TPlanItemDefinition
	AutoComplete   bool             `xml:"autoComplete,attr"`
	PlanItems      []TPlanItem      `xml:"planItem"`
	Stages         []TStage         `xml:"stage"`
	HumanTasks     []TTask          `xml:"humanTask"`
	Tasks          []TTask          `xml:"task"`
	ProcessTasks   []TTask          `xml:"processTask"`
	CaseTasks      []TTask          `xml:"caseTask"`
	EventListeners []TEventListener `xml:"eventListener"`
}

type TTask struct {
	TPlanItemDefinition
	IsBlocking *bool `xml:"isBlocking,attr"`
}

// Blocking defaults to true when the attribute is missing.
func (t TTask) Blocking() bool {
	return t.IsBlocking == nil || *t.IsBlocking
}

type TEventListener struct {
	TPlanItemDefinition
	MessageName string `xml:"messageName,attr"`
}

type TPlanItem struct {
	Id            string        `xml:"id,attr"`
	Name          string        `xml:"name,attr"`
	DefinitionRef string        `xml:"definitionRef,attr"`
	ItemControl   *TItemControl `xml:"itemControl"`
}

type TItemControl struct {
	ManualActivationRule *TRule `xml:"manualActivationRule"`
	RequiredRule         *TRule `xml:"requiredRule"`
}

type TRule struct {
	Id        string       `xml:"id,attr"`
	Condition *TExpression `xml:"condition"`
}

type TExpression struct {
	Text string `xml:",chardata"`
}

// Expression returns the condition body without a ${...} wrapper, empty when the rule has no condition.
func (r *TRule) Expression() string {
	if r == nil || r.Condition == nil {
		return ""
	}
	expr := strings.TrimSpace(r.Condition.Text)
	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		expr = strings.TrimSpace(expr[2 : len(expr)-1])
	}
	return expr
}

func (pi *TPlanItem) ManualActivationRule() *TRule {
	if pi.ItemControl == nil {
		return nil
	}
	return pi.ItemControl.ManualActivationRule
}

func (pi *TPlanItem) RequiredRule() *TRule {
	if pi.ItemControl == nil {
		return nil
	}
	return pi.ItemControl.RequiredRule
}

// PlanItemDefinition is a resolved definitionRef target.
type PlanItemDefinition struct {
	Id          string
	Name        string
	Type        ElementType
	Blocking    bool
	MessageName string
	Stage       *TStage
}
