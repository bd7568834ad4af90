package aggregate

import (
	"testing"

	"github.com/pdmcolombia/pdmaudit/pkg/bayes"
	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformMembers(ids []string, score float64) []Member {
	members := make([]Member, len(ids))
	for i, id := range ids {
		members[i] = Member{ID: id, Score: score, Weight: 1, Sign: SignOf(score, 3)}
	}
	return members
}

func TestAggregateDimension_IdenticalMicroScores(t *testing.T) {
	// spec.md §8 scenario 2: 5 micros all = 2.0 => DimensionScore = 2.0,
	// dispersion_penalty = 0, no contradiction emitted.
	members := uniformMembers([]string{"D1Q1", "D1Q2", "D1Q3", "D1Q4", "D1Q5"}, 2.0)
	ds, err := AggregateDimension(pdm.PA01, pdm.D1Insumos, members, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, ds.Score, 1e-12)
	assert.Equal(t, 0.0, ds.Dispersion.Penalty)
	assert.Empty(t, ds.Contradictions)
}

func TestAggregateDimension_PolarDisagreement(t *testing.T) {
	// spec.md §8 scenario 3: micros = [0,3,0,3,0] => DimensionScore <
	// weighted_mean(=1.2), penalty > 0.05, contradiction emitted.
	scores := []float64{0.0, 3.0, 0.0, 3.0, 0.0}
	members := make([]Member, len(scores))
	for i, s := range scores {
		members[i] = Member{ID: scoreID(i), Score: s, Weight: 1, Sign: SignOf(s, 3)}
	}

	ds, err := AggregateDimension(pdm.PA02, pdm.D2Actividades, members, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)

	assert.InDelta(t, 1.2, ds.WeightedMean, 1e-9)
	assert.Less(t, ds.Score, ds.WeightedMean)
	assert.Greater(t, ds.Dispersion.Penalty, 0.05)
	assert.NotEmpty(t, ds.Contradictions)
}

func scoreID(i int) string {
	return string(rune('a' + i))
}

func TestAggregateDimension_RejectsEmptyGroup(t *testing.T) {
	_, err := AggregateDimension(pdm.PA01, pdm.D1Insumos, nil, bayes.DefaultDispersionThresholds())
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestAggregateArea_ChainsFromDimensions(t *testing.T) {
	members := uniformMembers([]string{"D1", "D2", "D3", "D4", "D5", "D6"}, 1.5)
	area, err := AggregateArea(pdm.PA03, members, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, area.Score, 1e-12)
}

func TestAggregateCluster_AndMacro(t *testing.T) {
	areas := uniformMembers([]string{"PA01", "PA02"}, 2.0)
	cluster, err := AggregateCluster(pdm.ClusterSocial, areas, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, cluster.Score, 1e-12)

	clusters := uniformMembers([]string{"social", "economic"}, 2.0)
	macro, err := AggregateMacro(clusters, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, macro.Score, 1e-12)
}

func TestScanContradictions_NeutralNeverDominates(t *testing.T) {
	members := []Member{
		{ID: "a", Score: 1.5, Weight: 1, Sign: SignNeutral},
		{ID: "b", Score: 1.5, Weight: 1, Sign: SignNeutral},
	}
	dominant, contradictions := scanContradictions("g", members)
	assert.Equal(t, SignNeutral, dominant)
	assert.Empty(t, contradictions)
}

func TestRequiredColumns_Validate(t *testing.T) {
	rc := RequiredColumns{"policy_area", "dimension"}
	rows := []Row{{"policy_area": "PA01", "dimension": "D1"}}
	assert.NoError(t, rc.Validate(rows))

	badRows := []Row{{"policy_area": "PA01"}}
	err := rc.Validate(badRows)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGroupSpec_GroupRowsIsDeterministicOrder(t *testing.T) {
	spec := GroupSpec{GroupByKeys: RequiredColumns{"policy_area"}}
	rows := []Row{
		{"policy_area": "PA02"},
		{"policy_area": "PA01"},
		{"policy_area": "PA02"},
	}
	groups, keys, err := spec.GroupRows(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"PA01", "PA02"}, keys)
	assert.Len(t, groups["PA02"], 2)
}

func TestAggregate_FieldsEscapeHatch(t *testing.T) {
	members := uniformMembers([]string{"a", "b"}, 1.0)
	ds, err := AggregateDimension(pdm.PA01, pdm.D1Insumos, members, bayes.DefaultDispersionThresholds())
	require.NoError(t, err)

	fields := ds.Fields()
	assert.Equal(t, ds.Score, fields["score"])
	assert.Equal(t, 2, fields["member_count"])
}
