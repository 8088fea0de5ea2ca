package cmmn10

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefinitions(t *testing.T, name string) TDefinitions {
	data, err := os.ReadFile("./testdata/" + name)
	require.NoError(t, err)
	definitions, err := Unmarshal(data)
	require.NoError(t, err)
	return definitions
}

func TestSummaryMatchesGolden(t *testing.T) {
	definitions := loadDefinitions(t, "simple_case.cmmn")

	summary, err := json.MarshalIndent(definitions.Summary(), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden.json"),
	)
	g.Assert(t, "simple_case", summary)
}

func TestLookups(t *testing.T) {
	definitions := loadDefinitions(t, "simple_case.cmmn")
	assert.Equal(t, "http://zenbpm.io/cmmn/loans", definitions.TargetNamespace)

	c, ok := definitions.FindCase("simple_case")
	require.True(t, ok)
	assert.Equal(t, "P1D", c.HistoryTimeToLive)

	def, ok := c.FindDefinition("EventListener_Approval")
	require.True(t, ok)
	assert.Equal(t, ElementTypeEventListener, def.Type)
	assert.Equal(t, "approval", def.MessageName)

	items, err := c.PlanItemsOf("PI_Assessment")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "PI_RiskCheck", items[0].Id)

	_, err = c.PlanItemsOf("PI_CollectData")
	assert.Error(t, err)

	pi, ok := c.FindPlanItem("PI_ReviewDocuments")
	require.True(t, ok)
	assert.NotNil(t, pi.ManualActivationRule())
	assert.Equal(t, "", pi.ManualActivationRule().Expression())
	assert.Nil(t, pi.RequiredRule())
}

func TestRuleExpressionStripsWrapper(t *testing.T) {
	rule := &TRule{Condition: &TExpression{Text: "  ${amount > 1000} "}}
	assert.Equal(t, "amount > 1000", rule.Expression())

	var missing *TRule
	assert.Equal(t, "", missing.Expression())
}

func TestTaskBlockingDefault(t *testing.T) {
	nonBlocking := false
	assert.True(t, TTask{}.Blocking())
	assert.False(t, TTask{IsBlocking: &nonBlocking}.Blocking())
}

func TestValidateReportsAllProblems(t *testing.T) {
	data, err := os.ReadFile("./testdata/invalid_case.cmmn")
	require.NoError(t, err)

	_, err = Unmarshal(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid historyTimeToLive")
	assert.Contains(t, err.Error(), "duplicate element id PI_A")
	assert.Contains(t, err.Error(), "unknown definition \"HumanTask_Missing\"")
	assert.Contains(t, err.Error(), "stage Stage_Loop contains itself")
}

func TestValidateRequiresCase(t *testing.T) {
	_, err := Unmarshal([]byte(`<definitions id="empty"></definitions>`))
	assert.Error(t, err)
}
