package service

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Predictor architecture defaults.
const (
	DefaultSequenceLength = 50
	DefaultEmbedSize      = 16
	DefaultHiddenSize     = 32
	DefaultNumLayers      = 2

	xavierSeed = 42
)

// GateWeights holds one recurrent layer's input, forget, cell and output
// gates. W matrices map the layer input, U matrices map the previous hidden
// state; all are row-major [hidden][cols].
type GateWeights struct {
	WI [][]float64 `json:"w_i"`
	WF [][]float64 `json:"w_f"`
	WC [][]float64 `json:"w_c"`
	WO [][]float64 `json:"w_o"`
	UI [][]float64 `json:"u_i"`
	UF [][]float64 `json:"u_f"`
	UC [][]float64 `json:"u_c"`
	UO [][]float64 `json:"u_o"`
	BI []float64   `json:"b_i"`
	BF []float64   `json:"b_f"`
	BC []float64   `json:"b_c"`
	BO []float64   `json:"b_o"`
}

// WeightSet is a complete sequence-model parameter set: per-(skill,outcome)
// embeddings, recurrent gate matrices and the per-skill output projection.
type WeightSet struct {
	EmbedSize      int `json:"embed_size"`
	HiddenSize     int `json:"hidden_size"`
	NumLayers      int `json:"num_layers"`
	SequenceLength int `json:"sequence_length"`

	// Skills fixes the embedding and output index order.
	Skills []string `json:"skills"`

	// Embedding has 2*len(Skills) rows: row 2k is skill k observed
	// incorrect, row 2k+1 correct.
	Embedding [][]float64 `json:"embedding"`

	Layers []GateWeights `json:"layers"`

	// OutputW is [len(Skills)][HiddenSize]; OutputB is [len(Skills)].
	OutputW [][]float64 `json:"output_w"`
	OutputB []float64   `json:"output_b"`
}

// LoadWeights reads a trained weight set from the model registry export at
// path and validates its dimensions.
func LoadWeights(path string) (*WeightSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	w := &WeightSet{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("invalid weights %s: %w", path, err)
	}
	return w, nil
}

func (w *WeightSet) validate() error {
	if len(w.Skills) == 0 {
		return fmt.Errorf("no skills")
	}
	if w.EmbedSize <= 0 || w.HiddenSize <= 0 || w.NumLayers <= 0 || w.SequenceLength <= 0 {
		return fmt.Errorf("non-positive dimension")
	}
	if len(w.Embedding) != 2*len(w.Skills) {
		return fmt.Errorf("embedding rows %d, want %d", len(w.Embedding), 2*len(w.Skills))
	}
	for i, row := range w.Embedding {
		if len(row) != w.EmbedSize {
			return fmt.Errorf("embedding row %d has %d cols, want %d", i, len(row), w.EmbedSize)
		}
	}
	if len(w.Layers) != w.NumLayers {
		return fmt.Errorf("%d layers, want %d", len(w.Layers), w.NumLayers)
	}
	inputSize := w.EmbedSize + 1
	for l := range w.Layers {
		if err := validateGates(l, &w.Layers[l], w.HiddenSize, inputSize); err != nil {
			return err
		}
		inputSize = w.HiddenSize
	}
	if len(w.OutputW) != len(w.Skills) || len(w.OutputB) != len(w.Skills) {
		return fmt.Errorf("output projection shape mismatch")
	}
	for i, row := range w.OutputW {
		if len(row) != w.HiddenSize {
			return fmt.Errorf("output row %d has %d cols, want %d", i, len(row), w.HiddenSize)
		}
	}
	return nil
}

// validateGates checks one layer's full gate dimensions: W matrices against
// the layer's input width, U matrices and biases against the hidden size.
func validateGates(layer int, g *GateWeights, hidden, input int) error {
	matrices := []struct {
		name string
		m    [][]float64
		cols int
	}{
		{"w_i", g.WI, input}, {"w_f", g.WF, input}, {"w_c", g.WC, input}, {"w_o", g.WO, input},
		{"u_i", g.UI, hidden}, {"u_f", g.UF, hidden}, {"u_c", g.UC, hidden}, {"u_o", g.UO, hidden},
	}
	for _, mat := range matrices {
		if len(mat.m) != hidden {
			return fmt.Errorf("layer %d %s has %d rows, want %d", layer, mat.name, len(mat.m), hidden)
		}
		for i, row := range mat.m {
			if len(row) != mat.cols {
				return fmt.Errorf("layer %d %s row %d has %d cols, want %d", layer, mat.name, i, len(row), mat.cols)
			}
		}
	}
	biases := []struct {
		name string
		b    []float64
	}{
		{"b_i", g.BI}, {"b_f", g.BF}, {"b_c", g.BC}, {"b_o", g.BO},
	}
	for _, bias := range biases {
		if len(bias.b) != hidden {
			return fmt.Errorf("layer %d %s has %d entries, want %d", layer, bias.name, len(bias.b), hidden)
		}
	}
	return nil
}

// XavierWeights builds a deterministic Xavier/Glorot-initialized weight set
// for the given skill list. It is the fallback when no trained weights are
// available: predictions degrade in value but stay well-formed and
// reproducible.
func XavierWeights(skills []string, embedSize, hiddenSize, numLayers, sequenceLength int) *WeightSet {
	if embedSize <= 0 {
		embedSize = DefaultEmbedSize
	}
	if hiddenSize <= 0 {
		hiddenSize = DefaultHiddenSize
	}
	if numLayers <= 0 {
		numLayers = DefaultNumLayers
	}
	if sequenceLength <= 0 {
		sequenceLength = DefaultSequenceLength
	}
	if len(skills) == 0 {
		skills = []string{"_unknown"}
	}

	rng := rand.New(rand.NewSource(xavierSeed))

	w := &WeightSet{
		EmbedSize:      embedSize,
		HiddenSize:     hiddenSize,
		NumLayers:      numLayers,
		SequenceLength: sequenceLength,
		Skills:         append([]string(nil), skills...),
		Embedding:      xavierMatrix(rng, 2*len(skills), embedSize),
		OutputW:        xavierMatrix(rng, len(skills), hiddenSize),
		OutputB:        make([]float64, len(skills)),
	}

	// Layer 0 consumes the embedding plus the time-gap feature; deeper
	// layers consume the previous hidden state.
	inputSize := embedSize + 1
	for l := 0; l < numLayers; l++ {
		w.Layers = append(w.Layers, GateWeights{
			WI: xavierMatrix(rng, hiddenSize, inputSize),
			WF: xavierMatrix(rng, hiddenSize, inputSize),
			WC: xavierMatrix(rng, hiddenSize, inputSize),
			WO: xavierMatrix(rng, hiddenSize, inputSize),
			UI: xavierMatrix(rng, hiddenSize, hiddenSize),
			UF: xavierMatrix(rng, hiddenSize, hiddenSize),
			UC: xavierMatrix(rng, hiddenSize, hiddenSize),
			UO: xavierMatrix(rng, hiddenSize, hiddenSize),
			BI: make([]float64, hiddenSize),
			BF: make([]float64, hiddenSize),
			BC: make([]float64, hiddenSize),
			BO: make([]float64, hiddenSize),
		})
		inputSize = hiddenSize
	}
	return w
}

func xavierMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * limit
		}
	}
	return m
}
