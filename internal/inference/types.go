// Package inference runs the three cardiac models (PCG classifier,
// murmur severity, ECG classifier) against preprocessed signals, with a
// deterministic demo-mode fallback when model files are absent.
package inference

// Metadata is the common sub-record embedded in every prediction,
// replacing the source's duck-typed dict with a typed, per-modality
// tagged record (spec.md §9 re-architecture item).
type Metadata struct {
	ModelName            string
	ModelVersion         string // "v1.0.0" if a real model is loaded, "demo" otherwise
	PreprocessingVersion string
	LatencyMS            float64
	DemoMode             bool
}

// PCGPrediction is the output of predict_pcg.
type PCGPrediction struct {
	Label         string // Normal | Murmur | Artifact
	Probabilities map[string]float64
	Metadata      Metadata
}

// ECGPrediction is the output of predict_ecg.
type ECGPrediction struct {
	Label         string // Normal | SVEB | VEB | Fusion | Unknown
	Confidence    float64
	Probabilities map[string]float64
	Metadata      Metadata
}

// Head is a single murmur-severity sub-output: a predicted label plus
// its full probability distribution over a closed label set.
type Head struct {
	Predicted     string
	Probabilities map[string]float64
}

// SeverityPrediction is the output of predict_murmur_severity: six
// independent heads, each over its own closed label set.
type SeverityPrediction struct {
	Location Head
	Timing   Head
	Shape    Head
	Grading  Head
	Pitch    Head
	Quality  Head
	Metadata Metadata
}

// Canonical label sets, per spec.md §4.3. The richer sets are
// canonical per the spec's resolution of the divergent-copies open
// question (see DESIGN.md).
var (
	PCGLabels = []string{"Normal", "Murmur", "Artifact"}
	ECGLabels = []string{"Normal", "SVEB", "VEB", "Fusion", "Unknown"}

	LocationLabels = []string{"AV", "MV", "PV", "TV", "Left heart", "Right heart", "AV+Right", "MV+Right", "Multiple (3+)", "Other"}
	TimingLabels   = []string{"Early-systolic", "Mid-systolic", "Late-systolic", "Holosystolic", "Unknown"}
	ShapeLabels    = []string{"Crescendo", "Decrescendo", "Crescendo-decrescendo", "Plateau", "Unknown"}
	GradingLabels  = []string{"I/VI", "II/VI", "III/VI", "IV/VI", "V/VI", "VI/VI", "Unknown"}
	PitchLabels    = []string{"Low", "Medium", "High", "Unknown"}
	QualityLabels  = []string{"Blowing", "Harsh", "Musical", "Unknown"}
)

// argmax returns the label with maximum probability, ties broken by
// first index, and that max probability.
func argmax(labels []string, probs map[string]float64) (string, float64) {
	best := labels[0]
	bestP := probs[labels[0]]
	for _, l := range labels[1:] {
		if probs[l] > bestP {
			best = l
			bestP = probs[l]
		}
	}
	return best, bestP
}
