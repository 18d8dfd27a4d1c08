package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cortexbi/cortexbi/internal/feedback"
)

// User personas derived from usage history. They steer which default
// recommendations a user sees before the model has anything to say.
const (
	PersonaExplorer    = "explorer_analyst"
	PersonaSpecialist  = "focused_specialist"
	PersonaCasual      = "casual_user"
	PersonaPerformance = "performance_analyst"
	PersonaTrend       = "trend_analyst"
	PersonaBalanced    = "balanced_user"
)

// Profile summarizes one user's history: how much they use the system,
// how varied that use is, and what they rated well.
type Profile struct {
	UserID        string                  `json:"user_id"`
	Persona       string                  `json:"persona"`
	ActivityLevel string                  `json:"activity_level"`
	Interactions  int                     `json:"interactions"`
	Diversity     float64                 `json:"diversity"`
	MostUsed      []feedback.UsagePattern `json:"most_used"`
	Preferences   map[string]string       `json:"preferences"`
}

// profileSource is the slice of the feedback store the profiler needs.
type profileSource interface {
	UserPatterns(userID string) ([]feedback.UsagePattern, error)
	UserPreferences(userID string) (map[string]string, error)
}

// BuildProfile assembles a user profile from the feedback store.
func BuildProfile(store profileSource, userID string) (*Profile, error) {
	patterns, err := store.UserPatterns(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage patterns: %w", err)
	}
	prefs, err := store.UserPreferences(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	total := 0
	for _, p := range patterns {
		total += p.Uses
	}
	diversity := 0.0
	if total > 0 {
		diversity = float64(len(patterns)) / float64(total)
	}

	mostUsed := patterns
	if len(mostUsed) > 5 {
		mostUsed = mostUsed[:5]
	}
	if mostUsed == nil {
		mostUsed = []feedback.UsagePattern{}
	}

	return &Profile{
		UserID:        userID,
		Persona:       detectPersona(patterns, total, diversity),
		ActivityLevel: activityLevel(total),
		Interactions:  total,
		Diversity:     diversity,
		MostUsed:      mostUsed,
		Preferences:   prefs,
	}, nil
}

// detectPersona classifies a user by volume and spread of use. Rules are
// checked in order; the first match wins.
func detectPersona(patterns []feedback.UsagePattern, total int, diversity float64) string {
	switch {
	case diversity > 0.7 && total > 20:
		return PersonaExplorer
	case diversity < 0.3 && total > 10:
		return PersonaSpecialist
	case total < 10:
		return PersonaCasual
	}
	for i, p := range patterns {
		if i >= 2 {
			break
		}
		if strings.Contains(p.AnalysisType, "kpi") {
			return PersonaPerformance
		}
		if strings.Contains(p.AnalysisType, "compare") {
			return PersonaTrend
		}
	}
	return PersonaBalanced
}

func activityLevel(total int) string {
	switch {
	case total >= 50:
		return "high"
	case total >= 20:
		return "medium"
	case total >= 5:
		return "low"
	}
	return "very_low"
}

// Recommendation is one suggested analysis with a reason the user can read.
type Recommendation struct {
	AnalysisType string  `json:"analysis_type"`
	Reason       string  `json:"reason"`
	Priority     float64 `json:"priority"`
}

// personaDefaults seed the recommendation list so new or quiet users still
// get something sensible.
var personaDefaults = map[string][]Recommendation{
	PersonaExplorer: {
		{AnalysisType: "custom_kpis", Reason: "Explore KPIs personalizados", Priority: 0.8},
		{AnalysisType: "count_reasons", Reason: "Descubra os motivos mais frequentes", Priority: 0.7},
	},
	PersonaSpecialist: {
		{AnalysisType: "custom_kpis", Reason: "Aprofunde a análise da sua área", Priority: 0.9},
		{AnalysisType: "compare_periods", Reason: "Compare com períodos anteriores", Priority: 0.7},
	},
	PersonaCasual: {
		{AnalysisType: "compare_periods", Reason: "Compare períodos recentes", Priority: 0.9},
		{AnalysisType: "segment_groups", Reason: "Visão geral por grupos", Priority: 0.7},
	},
	PersonaPerformance: {
		{AnalysisType: "custom_kpis", Reason: "KPIs atualizados dos seus dados", Priority: 0.9},
		{AnalysisType: "compare_periods", Reason: "Tendências de performance", Priority: 0.8},
	},
	PersonaTrend: {
		{AnalysisType: "compare_periods", Reason: "Análise temporal dos seus dados", Priority: 0.9},
		{AnalysisType: "segment_groups", Reason: "Segmente os períodos por grupo", Priority: 0.7},
	},
	PersonaBalanced: {
		{AnalysisType: "compare_periods", Reason: "Comparação de períodos", Priority: 0.8},
		{AnalysisType: "segment_groups", Reason: "Segmentação por grupos", Priority: 0.7},
		{AnalysisType: "custom_kpis", Reason: "Resumo de KPIs", Priority: 0.6},
	},
}

// Recommend merges persona defaults with model predictions for the user,
// deduplicates by analysis type keeping the highest priority, and returns
// at most five suggestions ranked best first. A nil model yields persona
// defaults only.
func Recommend(m *Model, profile *Profile) []Recommendation {
	defaults, ok := personaDefaults[profile.Persona]
	if !ok {
		defaults = personaDefaults[PersonaBalanced]
	}
	recs := append([]Recommendation(nil), defaults...)

	if m != nil {
		predictions := m.Predict(profile.UserID)
		if len(predictions) > 3 {
			predictions = predictions[:3]
		}
		priority := 0.85
		for _, p := range predictions {
			recs = append(recs, Recommendation{
				AnalysisType: p.AnalysisType,
				Reason:       "Baseado no seu histórico de uso",
				Priority:     priority,
			})
			priority -= 0.1
		}
	}

	best := make(map[string]Recommendation)
	for _, r := range recs {
		if cur, ok := best[r.AnalysisType]; !ok || r.Priority > cur.Priority {
			best[r.AnalysisType] = r
		}
	}
	out := make([]Recommendation, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].AnalysisType < out[j].AnalysisType
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
