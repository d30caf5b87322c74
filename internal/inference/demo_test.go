package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probSum(probs map[string]float64) float64 {
	var s float64
	for _, v := range probs {
		s += v
	}
	return s
}

func TestDemoPredictPCGIsDeterministic(t *testing.T) {
	audio := make([]float64, 1000)
	for i := range audio {
		audio[i] = 0.01
	}
	a := demoPredictPCG(audio, "v1.0.0", 1.0)
	b := demoPredictPCG(audio, "v1.0.0", 2.0)
	assert.Equal(t, a.Label, b.Label)
	assert.Equal(t, a.Probabilities, b.Probabilities)
	assert.True(t, a.Metadata.DemoMode)
	assert.Equal(t, "demo", a.Metadata.ModelVersion)
}

func TestDemoPredictPCGBands(t *testing.T) {
	silent := make([]float64, 100)
	pred := demoPredictPCG(silent, "v1.0.0", 0)
	assert.Equal(t, "Artifact", pred.Label)

	quiet := make([]float64, 100)
	for i := range quiet {
		quiet[i] = 0.05
	}
	pred = demoPredictPCG(quiet, "v1.0.0", 0)
	assert.Equal(t, "Normal", pred.Label)

	loud := make([]float64, 100)
	for i := range loud {
		loud[i] = 0.5
	}
	pred = demoPredictPCG(loud, "v1.0.0", 0)
	assert.Equal(t, "Murmur", pred.Label)
	assert.InDelta(t, 1.0, probSum(pred.Probabilities), 1e-9)
}

func TestDemoPredictSeverityIsCanonical(t *testing.T) {
	a := demoPredictSeverity("v1.0.0", 1.0)
	b := demoPredictSeverity("v1.0.0", 5.0)
	assert.Equal(t, a.Location, b.Location)
	assert.Equal(t, "MV", a.Location.Predicted)
	assert.Equal(t, "III/VI", a.Grading.Predicted)
	assert.InDelta(t, 1.0, probSum(a.Location.Probabilities), 1e-9)
	assert.InDelta(t, 1.0, probSum(a.Timing.Probabilities), 1e-9)
	assert.InDelta(t, 1.0, probSum(a.Shape.Probabilities), 1e-9)
	assert.InDelta(t, 1.0, probSum(a.Grading.Probabilities), 1e-9)
	assert.InDelta(t, 1.0, probSum(a.Pitch.Probabilities), 1e-9)
	assert.InDelta(t, 1.0, probSum(a.Quality.Probabilities), 1e-9)
}

func TestDemoPredictECGBands(t *testing.T) {
	flat := make([]float64, 500)
	pred := demoPredictECG(flat, "v1.0.0", 0)
	assert.Equal(t, "Normal", pred.Label)

	noisy := make([]float64, 500)
	for i := range noisy {
		if i%2 == 0 {
			noisy[i] = 3.0
		} else {
			noisy[i] = -3.0
		}
	}
	pred = demoPredictECG(noisy, "v1.0.0", 0)
	assert.Equal(t, "VEB", pred.Label)
	assert.InDelta(t, 1.0, probSum(pred.Probabilities), 1e-9)
}

func TestArgmaxTieBreaksByFirstIndex(t *testing.T) {
	labels := []string{"Normal", "SVEB", "VEB"}
	probs := map[string]float64{"Normal": 0.5, "SVEB": 0.5, "VEB": 0.0}
	label, p := argmax(labels, probs)
	assert.Equal(t, "Normal", label)
	assert.Equal(t, 0.5, p)
}

func TestCanonicalLabelSetsAreNonEmptyAndUnique(t *testing.T) {
	sets := map[string][]string{
		"pcg": PCGLabels, "ecg": ECGLabels, "location": LocationLabels,
		"timing": TimingLabels, "shape": ShapeLabels, "grading": GradingLabels,
		"pitch": PitchLabels, "quality": QualityLabels,
	}
	for name, labels := range sets {
		require.NotEmpty(t, labels, name)
		seen := make(map[string]bool, len(labels))
		for _, l := range labels {
			assert.False(t, seen[l], "%s: duplicate label %q", name, l)
			seen[l] = true
		}
	}
}
