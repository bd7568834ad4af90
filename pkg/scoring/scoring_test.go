package scoring

import (
	"testing"

	"github.com/pdmcolombia/pdmaudit/pkg/pdm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evidenceWithRatio(present, total int) Evidence {
	required := make([]string, total)
	matched := make([]string, 0, present)
	for i := 0; i < total; i++ {
		required[i] = fmtKey(i)
		if i < present {
			matched = append(matched, fmtKey(i))
		}
	}
	return Evidence{MatchedElements: matched, RequiredElements: required}
}

func fmtKey(i int) string {
	return "elem_" + string(rune('a'+i))
}

func TestQualityLevelFor_Thresholds(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		ratio float64
		want  pdm.QualityLevel
	}{
		{1.0, pdm.QualityExcelente},
		{0.85, pdm.QualityExcelente},
		{0.84, pdm.QualitySatisfactorio},
		{0.65, pdm.QualitySatisfactorio},
		{0.64, pdm.QualityBasico},
		{0.40, pdm.QualityBasico},
		{0.39, pdm.QualityInsuficiente},
		{0, pdm.QualityInsuficiente},
	}
	for _, c := range cases {
		got, err := QualityLevelFor(c.ratio, th)
		require.NoError(t, err)
		assert.Equalf(t, c.want, got, "ratio=%v", c.ratio)
	}
}

func TestQualityLevelFor_RejectsOutOfRange(t *testing.T) {
	_, err := QualityLevelFor(1.1, DefaultThresholds())
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestQualityLevelFor_MonotoneNonDecreasing(t *testing.T) {
	th := DefaultThresholds()
	prevRank := -1
	for i := 0; i <= 100; i++ {
		ratio := float64(i) / 100
		level, err := QualityLevelFor(ratio, th)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, level.Rank(), prevRank)
		prevRank = level.Rank()
	}
}

func TestElementsPresentRatio_ZeroRequiredIsZero(t *testing.T) {
	ev := Evidence{}
	assert.Equal(t, 0.0, ev.ElementsPresentRatio())
}

func TestElementsPresentRatio_DeduplicatesMatched(t *testing.T) {
	ev := Evidence{
		MatchedElements:  []string{"a", "a", "b"},
		RequiredElements: []string{"a", "b", "c"},
	}
	assert.InDelta(t, 2.0/3.0, ev.ElementsPresentRatio(), 1e-12)
}

func TestScoreTypeA_ProducesRankedScore(t *testing.T) {
	ev := evidenceWithRatio(5, 5)
	res, err := ScoreTypeA("Q1", pdm.BaseSlot{Dimension: pdm.D1Insumos, Question: 1}, pdm.PA01, pdm.D1Insumos, ev, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, pdm.QualityExcelente, res.QualityLevel)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, TypeA, res.Modality)
}

func TestScoreTypeB_ScalesLinearlyAndNeverExceedsScale(t *testing.T) {
	th := DefaultThresholds()
	for present := 0; present <= 10; present++ {
		ev := evidenceWithRatio(present, 10)
		res, err := ScoreTypeB("Q1", pdm.BaseSlot{Dimension: pdm.D2Actividades, Question: 2}, pdm.PA02, pdm.D2Actividades, ev, ScaleZeroToThree, th)
		require.NoError(t, err)
		assert.InDelta(t, 3.0*float64(present)/10.0, res.Score, 1e-12)
		assert.LessOrEqual(t, res.Score, float64(ScaleZeroToThree))
		assert.GreaterOrEqual(t, res.Score, 0.0)
	}
}

func TestScoreTypeB_FullCoverageHitsScaleExactly(t *testing.T) {
	ev := evidenceWithRatio(4, 4)
	res, err := ScoreTypeB("Q1", pdm.BaseSlot{Dimension: pdm.D3Productos, Question: 3}, pdm.PA03, pdm.D3Productos, ev, ScaleZeroToOne, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Score)
}
