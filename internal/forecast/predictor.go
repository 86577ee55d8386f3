package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/agritwin/cropcast/internal/models"
)

// ErrModelUnavailable is returned when the trained model artifact cannot be
// loaded. Missing artifacts are fatal at process start, not per-request.
var ErrModelUnavailable = errors.New("yield model unavailable")

// NumericTerm is one standardized numeric feature: the model scores
// (value - Mean) / Scale * Weight.
type NumericTerm struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
	Weight float64 `json:"weight"`
}

// ModelArtifact is the JSON export of the offline-trained yield regression.
// Categorical levels carry their own weights and are matched by exact string;
// an unseen level contributes zero.
type ModelArtifact struct {
	Version     string                        `json:"version"`
	TrainedAt   string                        `json:"trained_at"`
	Intercept   float64                       `json:"intercept"`
	Numeric     []NumericTerm                 `json:"numeric"`
	Categorical map[string]map[string]float64 `json:"categorical"`
}

// LoadModel reads and validates a model artifact. The column sets must match
// the authoritative schema exactly; a drifted artifact is rejected rather
// than silently scored.
func LoadModel(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrModelUnavailable, path, err)
	}
	var m ModelArtifact
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrModelUnavailable, path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return &m, nil
}

func (m *ModelArtifact) validate() error {
	numeric := make(map[string]bool, len(m.Numeric))
	for _, t := range m.Numeric {
		if t.Scale == 0 {
			return fmt.Errorf("numeric column %q has zero scale", t.Column)
		}
		numeric[t.Column] = true
	}
	for _, col := range NumericColumns {
		if !numeric[col] {
			return fmt.Errorf("artifact missing numeric column %q", col)
		}
	}
	if len(numeric) != len(NumericColumns) {
		return fmt.Errorf("artifact has %d numeric columns, schema has %d", len(numeric), len(NumericColumns))
	}
	for _, col := range CategoricalColumns {
		if _, ok := m.Categorical[col]; !ok {
			return fmt.Errorf("artifact missing categorical column %q", col)
		}
	}
	if len(m.Categorical) != len(CategoricalColumns) {
		return fmt.Errorf("artifact has %d categorical columns, schema has %d", len(m.Categorical), len(CategoricalColumns))
	}
	return nil
}

// Predictor wraps the loaded model. It is a shared read-only resource: one
// instance serves all requests and holds no per-request state.
type Predictor struct {
	model *ModelArtifact
}

// NewPredictor wraps an already-loaded artifact. The artifact is injected
// rather than read from a package singleton so tests can substitute a stub.
func NewPredictor(m *ModelArtifact) *Predictor {
	return &Predictor{model: m}
}

// Predict scores one feature row and returns total expected yield in
// quintals. The output is not guaranteed non-negative; callers apply the
// fallback table when it degenerates.
func (p *Predictor) Predict(row models.FeatureRow) float64 {
	m := p.model

	values := make([]float64, len(m.Numeric))
	weights := make([]float64, len(m.Numeric))
	for i, t := range m.Numeric {
		values[i] = (row.Numeric[t.Column] - t.Mean) / t.Scale
		weights[i] = t.Weight
	}
	score := m.Intercept + floats.Dot(values, weights)

	for col, levels := range m.Categorical {
		score += levels[row.Categorical[col]]
	}
	return score
}
