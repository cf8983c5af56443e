package service

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/lexlab/tracer/internal/domain"
)

const (
	// minSequenceEvents gates prediction: below this the classical model
	// governs alone.
	minSequenceEvents = 5

	// maxPredictorConfidence caps the coverage-proxy confidence; it is a
	// heuristic, not a calibrated probability.
	maxPredictorConfidence = 0.95

	// maxBlendWeight bounds neural influence on the mastery estimate,
	// protecting the statistically grounded value early in a learner's
	// history.
	maxBlendWeight = 0.4

	// gapNormHours scales the hours-since-previous feature into [0, 1].
	gapNormHours = 168.0
)

// LSTMPredictor runs the recurrent sequence model forward over a learner's
// chronological cross-skill interaction sequence. It is pure and read-only
// after construction, so one instance serves all goroutines.
type LSTMPredictor struct {
	weights *WeightSet
	index   map[string]int
}

// NewLSTMPredictor wraps a loaded (or Xavier-initialized) weight set.
func NewLSTMPredictor(w *WeightSet) *LSTMPredictor {
	index := make(map[string]int, len(w.Skills))
	for i, id := range w.Skills {
		index[id] = i
	}
	return &LSTMPredictor{weights: w, index: index}
}

// skillIndex maps a skill to its weight row; skills unknown to the model are
// hashed into a stable bucket so inference stays deterministic.
func (p *LSTMPredictor) skillIndex(skillID string) int {
	if i, ok := p.index[skillID]; ok {
		return i
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(skillID))
	return int(h.Sum32()) % len(p.weights.Skills)
}

// Predict runs the sequence through the recurrent layers and projects the
// final hidden state to the target skill's mastery probability. The
// confidence is min(0.95, seqLen/sequenceLength), a coverage proxy.
func (p *LSTMPredictor) Predict(sequence []domain.Interaction, targetSkill string) (float64, float64, error) {
	if len(sequence) < minSequenceEvents {
		return 0, 0, domain.ErrInsufficientHistory
	}

	w := p.weights
	if len(sequence) > w.SequenceLength {
		sequence = sequence[len(sequence)-w.SequenceLength:]
	}

	hidden := make([][]float64, w.NumLayers)
	cell := make([][]float64, w.NumLayers)
	for l := range hidden {
		hidden[l] = make([]float64, w.HiddenSize)
		cell[l] = make([]float64, w.HiddenSize)
	}

	for _, step := range sequence {
		if step.HoursSincePrev < 0 || math.IsNaN(step.HoursSincePrev) {
			return 0, 0, fmt.Errorf("malformed interaction: negative or NaN time gap")
		}
		x := p.inputVector(step)
		for l := 0; l < w.NumLayers; l++ {
			hidden[l], cell[l] = lstmCell(&w.Layers[l], x, hidden[l], cell[l])
			x = hidden[l]
		}
	}

	last := hidden[w.NumLayers-1]
	target := p.skillIndex(targetSkill)
	logit := w.OutputB[target]
	for j, h := range last {
		logit += w.OutputW[target][j] * h
	}
	prob := sigmoid(logit)

	confidence := math.Min(maxPredictorConfidence, float64(len(sequence))/float64(w.SequenceLength))
	return prob, confidence, nil
}

// inputVector is the (skill, outcome) embedding with the normalized time-gap
// feature appended.
func (p *LSTMPredictor) inputVector(step domain.Interaction) []float64 {
	row := 2 * p.skillIndex(step.SkillID)
	if step.Correct {
		row++
	}
	embed := p.weights.Embedding[row]

	x := make([]float64, len(embed)+1)
	copy(x, embed)
	x[len(embed)] = math.Min(1, step.HoursSincePrev/gapNormHours)
	return x
}

// lstmCell is one step of the standard gated recurrent update.
func lstmCell(g *GateWeights, x, hPrev, cPrev []float64) (h, c []float64) {
	n := len(hPrev)
	h = make([]float64, n)
	c = make([]float64, n)
	for i := 0; i < n; i++ {
		in := sigmoid(dot(g.WI[i], x) + dot(g.UI[i], hPrev) + g.BI[i])
		forget := sigmoid(dot(g.WF[i], x) + dot(g.UF[i], hPrev) + g.BF[i])
		cand := math.Tanh(dot(g.WC[i], x) + dot(g.UC[i], hPrev) + g.BC[i])
		out := sigmoid(dot(g.WO[i], x) + dot(g.UO[i], hPrev) + g.BO[i])

		c[i] = forget*cPrev[i] + in*cand
		h[i] = out * math.Tanh(c[i])
	}
	return h, c
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// BlendMastery folds the sequence prediction into the classical estimate.
// The neural weight grows with coverage confidence but never exceeds
// maxBlendWeight.
func BlendMastery(bktMastery, predicted, confidence float64) float64 {
	dktWeight := math.Min(maxBlendWeight, confidence*0.5)
	return ClampProb((1-dktWeight)*bktMastery + dktWeight*predicted)
}
