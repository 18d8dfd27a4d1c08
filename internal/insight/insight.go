// Package insight suggests the next analysis a user is likely to want.
// The model is a rating-weighted frequency table built from the feedback
// log; nothing heavier is warranted by the data volumes involved.
package insight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cortexbi/cortexbi/internal/feedback"
)

// Model is the trained predictor. Scores are rating-weighted use counts.
type Model struct {
	TrainedAt time.Time                     `json:"trained_at"`
	Samples   int                           `json:"samples"`
	Global    map[string]float64            `json:"global"`
	PerUser   map[string]map[string]float64 `json:"per_user"`
}

// Prediction is one ranked suggestion.
type Prediction struct {
	AnalysisType string  `json:"analysis_type"`
	Score        float64 `json:"score"`
}

// interactionSource is the slice of the feedback store the trainer needs.
type interactionSource interface {
	RatedInteractions() ([]feedback.RatedInteraction, error)
}

// Train builds a model from the feedback store. Every interaction counts
// once; a rating of 4 or 5 doubles its weight, a rating of 1 or 2 halves
// it, so well-received analyses rank ahead of merely frequent ones.
func Train(store interactionSource) (*Model, error) {
	rated, err := store.RatedInteractions()
	if err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	m := &Model{
		TrainedAt: time.Now().UTC(),
		Samples:   len(rated),
		Global:    make(map[string]float64),
		PerUser:   make(map[string]map[string]float64),
	}
	for _, ri := range rated {
		weight := 1.0
		switch {
		case ri.Rating >= 4:
			weight = 2.0
		case ri.Rating >= 1 && ri.Rating <= 2:
			weight = 0.5
		}
		m.Global[ri.AnalysisType] += weight
		if m.PerUser[ri.UserID] == nil {
			m.PerUser[ri.UserID] = make(map[string]float64)
		}
		m.PerUser[ri.UserID][ri.AnalysisType] += weight
	}
	return m, nil
}

// Predict ranks analysis types for a user, highest score first. Users
// with no history fall back to the global ranking.
func (m *Model) Predict(userID string) []Prediction {
	scores := m.PerUser[userID]
	if len(scores) == 0 {
		scores = m.Global
	}
	out := make([]Prediction, 0, len(scores))
	for analysisType, score := range scores {
		out = append(out, Prediction{AnalysisType: analysisType, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AnalysisType < out[j].AnalysisType
	})
	return out
}

const modelFile = "insight.json"

// Save persists the model under dir, creating it if needed.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create models dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	path := filepath.Join(dir, modelFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model to %s: %w", path, err)
	}
	return nil
}

// Load reads a previously saved model from dir.
func Load(dir string) (*Model, error) {
	path := filepath.Join(dir, modelFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model from %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return &m, nil
}
