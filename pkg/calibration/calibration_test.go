package calibration

import (
	"testing"

	"github.com/pdmcolombia/pdmaudit/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformInputs(v float64) LayerInputs {
	li := make(LayerInputs, len(Layers))
	for _, l := range Layers {
		li[l] = v
	}
	return li
}

func TestNewMethodCalibration_RejectsNegativeWeight(t *testing.T) {
	_, err := NewMethodCalibration("m1", "v1", map[Layer]float64{LayerBase: -0.1}, nil, 0, 0, 1, "h")
	assert.ErrorIs(t, err, ErrConfigError)
}

func TestNewMethodCalibration_RejectsSumAboveOne(t *testing.T) {
	linear := map[Layer]float64{LayerBase: 0.6, LayerUnit: 0.5}
	_, err := NewMethodCalibration("m1", "v1", linear, nil, 0, 0, 1, "h")
	assert.ErrorIs(t, err, ErrConfigError)
}

func TestNewMethodCalibration_AcceptsValidWeights(t *testing.T) {
	linear := map[Layer]float64{LayerBase: 0.3, LayerUnit: 0.2}
	mc, err := NewMethodCalibration("m1", "v1", linear, nil, 0, 0, 1, "h")
	require.NoError(t, err)
	assert.Equal(t, "m1", mc.MethodID)
}

func TestChoquet_InRangeForValidWeights(t *testing.T) {
	linear := map[Layer]float64{LayerBase: 0.2, LayerUnit: 0.2}
	interaction := map[InteractionPair]float64{{First: LayerBase, Second: LayerUnit}: 0.1}
	mc, err := NewMethodCalibration("m1", "v1", linear, interaction, 0, 0, 1, "h")
	require.NoError(t, err)

	for v := 0.0; v <= 1.0; v += 0.1 {
		score, err := mc.Choquet(uniformInputs(v))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestChoquet_RejectsMissingLayerInput(t *testing.T) {
	mc, err := NewMethodCalibration("m1", "v1", map[Layer]float64{LayerBase: 0.5}, nil, 0, 0, 1, "h")
	require.NoError(t, err)

	incomplete := LayerInputs{LayerBase: 0.5}
	_, err = mc.Choquet(incomplete)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestChoquet_RejectsOutOfRangeLayerInput(t *testing.T) {
	mc, err := NewMethodCalibration("m1", "v1", map[Layer]float64{LayerBase: 0.5}, nil, 0, 0, 1, "h")
	require.NoError(t, err)

	inputs := uniformInputs(0.5)
	inputs[LayerBase] = 1.5
	_, err = mc.Choquet(inputs)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestValidateForPositionality_ExecutorRequiresAllEightPositive(t *testing.T) {
	partial := map[Layer]float64{LayerBase: 0.05}
	mc, err := NewMethodCalibration("m1", "v1", partial, nil, 0, 0, 1, "h")
	require.NoError(t, err)

	err = mc.ValidateForPositionality(catalog.LayerExecutor)
	assert.ErrorIs(t, err, ErrConfigError)
}

func TestBucket_ThirdsBoundaries(t *testing.T) {
	assert.Equal(t, PositionEarly, Bucket(0))
	assert.Equal(t, PositionEarly, Bucket(0.32))
	assert.Equal(t, PositionMiddle, Bucket(0.34))
	assert.Equal(t, PositionMiddle, Bucket(0.65))
	assert.Equal(t, PositionLate, Bucket(0.67))
	assert.Equal(t, PositionLate, Bucket(1.0))
}

func TestCalibrationContext_PositionFraction(t *testing.T) {
	ctx := CalibrationContext{MethodPosition: 2, TotalMethods: 5}
	assert.InDelta(t, 0.5, ctx.PositionFraction(), 1e-12)

	single := CalibrationContext{MethodPosition: 0, TotalMethods: 1}
	assert.InDelta(t, 0, single.PositionFraction(), 1e-12)
}

func TestInteractionPairs_Count(t *testing.T) {
	pairs := InteractionPairs()
	assert.Len(t, pairs, 28)
	for _, p := range pairs {
		assert.Less(t, indexOf(p.First), indexOf(p.Second))
	}
}

func indexOf(l Layer) int {
	for i, v := range Layers {
		if v == l {
			return i
		}
	}
	return -1
}
