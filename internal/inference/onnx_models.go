package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortInitOnce guards the single process-wide ONNX Runtime environment
// init/shutdown, mirroring the once-per-process guard used for Silero
// VAD model init in the reference corpus (nupi's engine/silero.go).
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func ensureORTInitialized(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// pcgClassifierModel wraps the ONNX session for the PCG feature-vector
// classifier: input is the 34-scalar feature vector, output is a
// 3-class probability vector ordered per PCGLabels.
type pcgClassifierModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newPCGClassifierModel(path string) (*pcgClassifierModel, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 34))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(PCGLabels))))
	if err != nil {
		input.Destroy()
		return nil, err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	sess, err := ort.NewAdvancedSession(path,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	return &pcgClassifierModel{session: sess, input: input, output: output}, nil
}

func (m *pcgClassifierModel) predict(features [34]float64) (map[string]float64, error) {
	data := m.input.GetData()
	for i, v := range features {
		data[i] = float32(v)
	}
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: pcg classifier run: %w", err)
	}
	return probsFromOutput(PCGLabels, m.output.GetData()), nil
}

func (m *pcgClassifierModel) Close() {
	m.session.Destroy()
	m.input.Destroy()
	m.output.Destroy()
}

// severityModel wraps the ONNX session for the murmur-severity
// classifier: input is a fixed-frame-count mel spectrogram, output is
// six named per-head probability vectors.
type severityModel struct {
	session      *ort.AdvancedSession
	input        *ort.Tensor[float32]
	outputs      map[string]*ort.Tensor[float32]
	outputOrder  []string
	frameCount   int
	melBands     int
}

// severityFrameCount is the fixed number of spectrogram frames the
// severity model expects: ceil(target_duration*sample_rate / hop), i.e.
// ceil(220500/512).
const severityFrameCount = 431

var severityHeads = []struct {
	name   string
	labels []string
}{
	{"location", LocationLabels},
	{"timing", TimingLabels},
	{"shape", ShapeLabels},
	{"grading", GradingLabels},
	{"pitch", PitchLabels},
	{"quality", QualityLabels},
}

func newSeverityModel(path string) (*severityModel, error) {
	melBands := 128
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(melBands), int64(severityFrameCount)))
	if err != nil {
		return nil, err
	}

	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		input.Destroy()
		return nil, err
	}

	outputs := make(map[string]*ort.Tensor[float32], len(severityHeads))
	outputValues := make([]ort.Value, 0, len(severityHeads))
	outputNames := make([]string, 0, len(severityHeads))
	for i, head := range severityHeads {
		t, terr := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(head.labels))))
		if terr != nil {
			input.Destroy()
			for _, o := range outputs {
				o.Destroy()
			}
			return nil, terr
		}
		outputs[head.name] = t
		outputValues = append(outputValues, t)
		name := head.name
		if i < len(outInfo) {
			name = outInfo[i].Name
		}
		outputNames = append(outputNames, name)
	}

	sess, err := ort.NewAdvancedSession(path,
		[]string{inInfo[0].Name}, outputNames,
		[]ort.Value{input}, outputValues, nil)
	if err != nil {
		input.Destroy()
		for _, o := range outputs {
			o.Destroy()
		}
		return nil, err
	}

	order := make([]string, len(severityHeads))
	for i, h := range severityHeads {
		order[i] = h.name
	}

	return &severityModel{
		session:     sess,
		input:       input,
		outputs:     outputs,
		outputOrder: order,
		frameCount:  severityFrameCount,
		melBands:    melBands,
	}, nil
}

func (m *severityModel) predict(spec [][]float64) (SeverityPrediction, error) {
	data := m.input.GetData()
	for b := 0; b < m.melBands && b < len(spec); b++ {
		row := spec[b]
		for t := 0; t < m.frameCount; t++ {
			v := 0.0
			if t < len(row) {
				v = row[t]
			}
			data[b*m.frameCount+t] = float32(v)
		}
	}
	if err := m.session.Run(); err != nil {
		return SeverityPrediction{}, fmt.Errorf("inference: severity model run: %w", err)
	}

	headFor := func(name string, labels []string) Head {
		probs := probsFromOutput(labels, m.outputs[name].GetData())
		predicted, _ := argmax(labels, probs)
		return Head{Predicted: predicted, Probabilities: probs}
	}

	return SeverityPrediction{
		Location: headFor("location", LocationLabels),
		Timing:   headFor("timing", TimingLabels),
		Shape:    headFor("shape", ShapeLabels),
		Grading:  headFor("grading", GradingLabels),
		Pitch:    headFor("pitch", PitchLabels),
		Quality:  headFor("quality", QualityLabels),
	}, nil
}

func (m *severityModel) Close() {
	m.session.Destroy()
	m.input.Destroy()
	for _, o := range m.outputs {
		o.Destroy()
	}
}

// ecgClassifierModel wraps the ONNX session for the ECG window
// classifier: input is the fixed-length conditioned ECG window, output
// is a 5-class probability vector ordered per ECGLabels.
type ecgClassifierModel struct {
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	windowSize int
}

func newECGClassifierModel(path string, windowSize int) (*ecgClassifierModel, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(windowSize)))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(ECGLabels))))
	if err != nil {
		input.Destroy()
		return nil, err
	}
	inInfo, outInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	sess, err := ort.NewAdvancedSession(path,
		[]string{inInfo[0].Name}, []string{outInfo[0].Name},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	return &ecgClassifierModel{session: sess, input: input, output: output, windowSize: windowSize}, nil
}

func (m *ecgClassifierModel) predict(window []float64) (map[string]float64, error) {
	data := m.input.GetData()
	for i := 0; i < m.windowSize && i < len(window); i++ {
		data[i] = float32(window[i])
	}
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: ecg classifier run: %w", err)
	}
	return probsFromOutput(ECGLabels, m.output.GetData()), nil
}

func (m *ecgClassifierModel) Close() {
	m.session.Destroy()
	m.input.Destroy()
	m.output.Destroy()
}

func probsFromOutput(labels []string, raw []float32) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for i, l := range labels {
		if i < len(raw) {
			out[l] = float64(raw[i])
		}
	}
	return out
}
