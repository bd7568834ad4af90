package questionnaire

import (
	"encoding/json"
	"testing"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/pdmcolombia/pdmaudit/pkg/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion() Question {
	return Question{
		GlobalID:         "PA01-D1Q1",
		BaseSlot:         pdm.BaseSlot{Dimension: pdm.D1Insumos, Question: 1},
		PolicyArea:       pdm.PA01,
		Dimension:        pdm.D1Insumos,
		Modality:         scoring.TypeA,
		RequiredElements: []string{"budget_line", "responsible_agency"},
	}
}

func minimalDocument(questions ...Question) bundleDocument {
	return bundleDocument{
		PolicyAreaClusters: defaultPolicyAreaClusters,
		Questions:          questions,
	}
}

func TestQuestion_Validate_RejectsMismatchedDimension(t *testing.T) {
	q := validQuestion()
	q.Dimension = pdm.D2Actividades

	err := q.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestQuestion_Validate_RejectsUnknownModality(t *testing.T) {
	q := validQuestion()
	q.Modality = "TYPE_C"

	err := q.Validate()
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestQuestion_Validate_RejectsNoRequiredElements(t *testing.T) {
	q := validQuestion()
	q.RequiredElements = nil

	err := q.Validate()
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestQuestion_EffectiveThresholds_DefaultsWhenUnset(t *testing.T) {
	q := validQuestion()
	assert.Equal(t, scoring.DefaultThresholds(), q.EffectiveThresholds())
}

func TestQuestion_EffectiveThresholds_HonorsOverride(t *testing.T) {
	q := validQuestion()
	override := scoring.Thresholds{Excelente: 0.99, Satisfactorio: 0.9, Basico: 0.5}
	q.Thresholds = &override

	assert.Equal(t, override, q.EffectiveThresholds())
}

func TestLoadFromJSON_BuildsUsableBundle(t *testing.T) {
	doc := minimalDocument(validQuestion())
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	bundle, err := LoadFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, bundle.Len())
	assert.NotEmpty(t, bundle.Hash())

	q, err := bundle.Lookup("PA01-D1Q1")
	require.NoError(t, err)
	assert.Equal(t, pdm.PA01, q.PolicyArea)
}

func TestLoadFromJSON_RejectsDuplicateGlobalID(t *testing.T) {
	q1 := validQuestion()
	q2 := validQuestion()
	doc := minimalDocument(q1, q2)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = LoadFromJSON(raw)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestLoadFromJSON_RejectsMissingClusterAssignment(t *testing.T) {
	doc := minimalDocument(validQuestion())
	doc.PolicyAreaClusters = map[pdm.PolicyArea]pdm.Cluster{pdm.PA01: pdm.ClusterSocial}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = LoadFromJSON(raw)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestLoadFromJSON_RejectsInvalidQuestion(t *testing.T) {
	q := validQuestion()
	q.GlobalID = ""
	doc := minimalDocument(q)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = LoadFromJSON(raw)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestBundle_Lookup_ReturnsMissingQuestionForUnknownID(t *testing.T) {
	doc := minimalDocument(validQuestion())
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	bundle, err := LoadFromJSON(raw)
	require.NoError(t, err)

	_, err = bundle.Lookup("ghost")
	assert.ErrorIs(t, err, ErrMissingQuestion)
}

func TestBundle_ClusterOf_ResolvesFixedAssignment(t *testing.T) {
	doc := minimalDocument(validQuestion())
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	bundle, err := LoadFromJSON(raw)
	require.NoError(t, err)

	cluster, err := bundle.ClusterOf(pdm.PA01)
	require.NoError(t, err)
	assert.Equal(t, pdm.ClusterSocial, cluster)
}

func TestBundle_ClusterOf_RejectsUnknownPolicyArea(t *testing.T) {
	doc := minimalDocument(validQuestion())
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	bundle, err := LoadFromJSON(raw)
	require.NoError(t, err)

	_, err = bundle.ClusterOf(pdm.PolicyArea("PA99"))
	assert.ErrorIs(t, err, ErrUnknownPolicyArea)
}

func TestHash_IsStableForIdenticalPayloadAndDiffersOnChange(t *testing.T) {
	doc := minimalDocument(validQuestion())
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	b1, err := LoadFromJSON(raw)
	require.NoError(t, err)
	b2, err := LoadFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), b2.Hash())

	other := validQuestion()
	other.GlobalID = "PA01-D1Q2"
	other.BaseSlot.Question = 2
	docChanged := minimalDocument(other)
	rawChanged, err := json.Marshal(docChanged)
	require.NoError(t, err)
	b3, err := LoadFromJSON(rawChanged)
	require.NoError(t, err)
	assert.NotEqual(t, b1.Hash(), b3.Hash())
}

func TestBundle_QuestionsForPolicyArea_FiltersAndSorts(t *testing.T) {
	bundle, _, err := BuildCanonical()
	require.NoError(t, err)

	qs := bundle.QuestionsForPolicyArea(pdm.PA01)
	require.NotEmpty(t, qs)
	for _, q := range qs {
		assert.Equal(t, pdm.PA01, q.PolicyArea)
	}
	for i := 1; i < len(qs); i++ {
		assert.Less(t, qs[i-1].GlobalID, qs[i].GlobalID)
	}
}

func TestBundle_QuestionsForBaseSlot_SpansPolicyAreas(t *testing.T) {
	bundle, _, err := BuildCanonical()
	require.NoError(t, err)

	slot := pdm.BaseSlot{Dimension: pdm.D1Insumos, Question: 1}
	qs := bundle.QuestionsForBaseSlot(slot)
	assert.Len(t, qs, len(pdm.PolicyAreas))
}

func TestBuildCanonical_HasApproximately305Questions(t *testing.T) {
	bundle, _, err := BuildCanonical()
	require.NoError(t, err)

	assert.Equal(t, 305, bundle.Len())
}

func TestBuildCanonical_AssignsModalityByDimension(t *testing.T) {
	bundle, _, err := BuildCanonical()
	require.NoError(t, err)

	q, err := bundle.Lookup("PA01-D1Q1")
	require.NoError(t, err)
	assert.Equal(t, scoring.TypeA, q.Modality)

	q, err = bundle.Lookup("PA01-D4Q1")
	require.NoError(t, err)
	assert.Equal(t, scoring.TypeB, q.Modality)
}

func TestBuildCanonical_EveryPolicyAreaHasClusterAssignment(t *testing.T) {
	bundle, _, err := BuildCanonical()
	require.NoError(t, err)

	for _, pa := range pdm.PolicyAreas {
		_, err := bundle.ClusterOf(pa)
		assert.NoError(t, err)
	}
}
