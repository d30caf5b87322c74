package inference

import "math"

// Demo mode is the deterministic fallback activated when a model file
// is missing and demo mode is enabled (spec.md §4.3). Structurally this
// mirrors the stub engine pattern used for VAD fallback elsewhere in
// the reference corpus: a fixed, input-derived decision rule instead of
// a real model, with the same output shape a real model would produce.

func demoMetadata(modelName string, preprocessingVersion string, latencyMS float64) Metadata {
	return Metadata{
		ModelName:            modelName,
		ModelVersion:         "demo",
		PreprocessingVersion: preprocessingVersion,
		LatencyMS:            latencyMS,
		DemoMode:             true,
	}
}

func meanAbsAmplitude(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}

func variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(x))
}

// demoPredictPCG classifies by mean absolute amplitude banding: a
// near-silent buffer reads as a sensor artifact, a quiet-but-present
// signal as normal, and a loud one as a murmur.
func demoPredictPCG(audio []float64, preprocessingVersion string, latencyMS float64) PCGPrediction {
	amp := meanAbsAmplitude(audio)

	var label string
	var probs map[string]float64
	switch {
	case amp < 0.02:
		label = "Artifact"
		probs = map[string]float64{"Normal": 0.10, "Murmur": 0.05, "Artifact": 0.85}
	case amp < 0.08:
		label = "Normal"
		probs = map[string]float64{"Normal": 0.82, "Murmur": 0.10, "Artifact": 0.08}
	default:
		label = "Murmur"
		probs = map[string]float64{"Normal": 0.15, "Murmur": 0.75, "Artifact": 0.10}
	}

	return PCGPrediction{
		Label:         label,
		Probabilities: probs,
		Metadata:      demoMetadata("pcg_xgboost_classifier", preprocessingVersion, latencyMS),
	}
}

// demoPredictSeverity returns the fixed canonical severity record
// stated literally in spec.md §8 Scenario E, independent of input.
func demoPredictSeverity(preprocessingVersion string, latencyMS float64) SeverityPrediction {
	return SeverityPrediction{
		Location: Head{
			Predicted: "MV",
			Probabilities: map[string]float64{
				"AV": 0.10, "MV": 0.45, "PV": 0.08, "TV": 0.10,
				"Left heart": 0.10, "Right heart": 0.07, "AV+Right": 0.03,
				"MV+Right": 0.03, "Multiple (3+)": 0.02, "Other": 0.02,
			},
		},
		Timing: Head{
			Predicted: "Mid-systolic",
			Probabilities: map[string]float64{
				"Early-systolic": 0.15, "Mid-systolic": 0.50, "Late-systolic": 0.20,
				"Holosystolic": 0.10, "Unknown": 0.05,
			},
		},
		Shape: Head{
			Predicted: "Crescendo-decrescendo",
			Probabilities: map[string]float64{
				"Crescendo": 0.15, "Decrescendo": 0.15, "Crescendo-decrescendo": 0.50,
				"Plateau": 0.15, "Unknown": 0.05,
			},
		},
		Grading: Head{
			Predicted: "III/VI",
			Probabilities: map[string]float64{
				"I/VI": 0.08, "II/VI": 0.20, "III/VI": 0.38, "IV/VI": 0.20,
				"V/VI": 0.08, "VI/VI": 0.03, "Unknown": 0.03,
			},
		},
		Pitch: Head{
			Predicted: "Medium",
			Probabilities: map[string]float64{
				"Low": 0.20, "Medium": 0.50, "High": 0.25, "Unknown": 0.05,
			},
		},
		Quality: Head{
			Predicted: "Blowing",
			Probabilities: map[string]float64{
				"Blowing": 0.48, "Harsh": 0.27, "Musical": 0.20, "Unknown": 0.05,
			},
		},
		Metadata: demoMetadata("murmur_severity_cnn", preprocessingVersion, latencyMS),
	}
}

// demoPredictECG classifies by signal variance: high variance reads as
// a ventricular ectopic beat, moderate variance as supraventricular,
// low variance as normal sinus rhythm.
func demoPredictECG(ecg []float64, preprocessingVersion string, latencyMS float64) ECGPrediction {
	v := variance(ecg)

	var label string
	var conf float64
	var probs map[string]float64
	switch {
	case v > 2.0:
		label, conf = "VEB", 0.68
		probs = map[string]float64{"Normal": 0.10, "SVEB": 0.12, "VEB": 0.68, "Fusion": 0.07, "Unknown": 0.03}
	case v > 1.0:
		label, conf = "SVEB", 0.62
		probs = map[string]float64{"Normal": 0.18, "SVEB": 0.62, "VEB": 0.12, "Fusion": 0.05, "Unknown": 0.03}
	default:
		label, conf = "Normal", 0.81
		probs = map[string]float64{"Normal": 0.81, "SVEB": 0.08, "VEB": 0.05, "Fusion": 0.03, "Unknown": 0.03}
	}

	return ECGPrediction{
		Label:         label,
		Confidence:    conf,
		Probabilities: probs,
		Metadata:      demoMetadata("ecg_bilstm_predictor", preprocessingVersion, latencyMS),
	}
}
