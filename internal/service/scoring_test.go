package service

import (
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"nightloom/internal/domain"
)

func testAxes() []domain.Axis {
	return []domain.Axis{
		{ID: "axis_1", Name: "Uno"},
		{ID: "axis_2", Name: "Dos"},
		{ID: "axis_3", Name: "Tres"},
		{ID: "axis_4", Name: "Cuatro"},
	}
}

// scoredSession arma una sesión en PLAY con 4 escenas de una opción cada una
// y el log de selecciones completo apuntando a esa opción.
func scoredSession(weightsPerScene []map[string]float64) *domain.Session {
	s := &domain.Session{
		ID:    "session-1",
		State: domain.StatePlay,
		Axes:  testAxes(),
	}
	for i, weights := range weightsPerScene {
		index := i + 1
		choiceID := fmt.Sprintf("s%d_c1", index)
		s.Scenes = append(s.Scenes, domain.Scene{
			SceneIndex: index,
			ThemeID:    "umbral",
			Narrative:  "...",
			Choices: []domain.Choice{
				{ID: choiceID, Text: "...", Weights: domain.WeightsFromMap(weights)},
			},
		})
		s.Choices = append(s.Choices, domain.ChoiceRecord{
			SceneIndex: index,
			ChoiceID:   choiceID,
			Timestamp:  time.Now().UTC(),
		})
	}
	return s
}

func fullWeights(v float64) map[string]float64 {
	return map[string]float64{"axis_1": v, "axis_2": v, "axis_3": v, "axis_4": v}
}

func TestCalculateRawScoresSums(t *testing.T) {
	s := scoredSession([]map[string]float64{
		fullWeights(0.5),
		fullWeights(0.5),
		fullWeights(-0.25),
		fullWeights(0.25),
	})
	engine := NewScoringEngine(false, zap.NewNop())

	raw, warnings, err := engine.CalculateRawScores(s)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	for _, axis := range testAxes() {
		if math.Abs(raw[axis.ID]-1.0) > 1e-9 {
			t.Fatalf("axis %s: expected 1.0, got %v", axis.ID, raw[axis.ID])
		}
	}
}

func TestCalculateRawScoresRequiresFourChoices(t *testing.T) {
	s := scoredSession([]map[string]float64{fullWeights(0.5), fullWeights(0.5)})
	engine := NewScoringEngine(false, zap.NewNop())

	_, _, err := engine.CalculateRawScores(s)
	if err == nil {
		t.Fatalf("expected error with 2 choice records, got nil")
	}
	if !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestCalculateRawScoresClampsSum(t *testing.T) {
	// 4 x +1.5 daría 6.0 sin acotar; el resultado debe ser 5.0 exacto.
	overload := map[string]float64{"axis_1": 1.5, "axis_2": -1.5}
	s := scoredSession([]map[string]float64{overload, overload, overload, overload})
	engine := NewScoringEngine(false, zap.NewNop())

	raw, _, err := engine.CalculateRawScores(s)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if raw["axis_1"] != domain.RawScoreMax {
		t.Fatalf("axis_1: expected %v, got %v", domain.RawScoreMax, raw["axis_1"])
	}
	if raw["axis_2"] != domain.RawScoreMin {
		t.Fatalf("axis_2: expected %v, got %v", domain.RawScoreMin, raw["axis_2"])
	}
}

func TestCalculateRawScoresMissingSceneIsFatal(t *testing.T) {
	s := scoredSession([]map[string]float64{
		fullWeights(0.5), fullWeights(0.5), fullWeights(0.5), fullWeights(0.5),
	})
	s.Scenes = s.Scenes[:3]
	engine := NewScoringEngine(false, zap.NewNop())

	_, _, err := engine.CalculateRawScores(s)
	if !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error for missing scene, got %v", err)
	}
}

func TestCalculateRawScoresMissingChoiceIsFatal(t *testing.T) {
	s := scoredSession([]map[string]float64{
		fullWeights(0.5), fullWeights(0.5), fullWeights(0.5), fullWeights(0.5),
	})
	s.Choices[3].ChoiceID = "ghost"
	engine := NewScoringEngine(false, zap.NewNop())

	_, _, err := engine.CalculateRawScores(s)
	if !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error for missing choice, got %v", err)
	}
}

func TestCalculateRawScoresToleratesUnknownAxes(t *testing.T) {
	s := scoredSession([]map[string]float64{
		{"axis_1": 0.5, "axis_ghost": 0.9},
		fullWeights(0.5),
		fullWeights(0.5),
		fullWeights(0.5),
	})
	engine := NewScoringEngine(false, zap.NewNop())

	raw, warnings, err := engine.CalculateRawScores(s)
	if err != nil {
		t.Fatalf("expected warnings instead of error, got %v", err)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected consistency warnings, got none")
	}
	if _, ok := raw["axis_ghost"]; ok {
		t.Fatalf("unknown axis must not appear in scores")
	}
	// axis_2 faltó en la primera opción: aporta 0 ahí, 0.5 en las demás.
	if math.Abs(raw["axis_2"]-1.5) > 1e-9 {
		t.Fatalf("axis_2: expected 1.5, got %v", raw["axis_2"])
	}
}

func TestCalculateRawScoresStrictPolicyRejects(t *testing.T) {
	s := scoredSession([]map[string]float64{
		{"axis_1": 0.5, "axis_ghost": 0.9},
		fullWeights(0.5),
		fullWeights(0.5),
		fullWeights(0.5),
	})
	engine := NewScoringEngine(true, zap.NewNop())

	_, warnings, err := engine.CalculateRawScores(s)
	if !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error under strict policy, got %v", err)
	}
	if len(warnings) == 0 {
		t.Fatalf("expected warnings to accompany strict rejection")
	}
}

func TestNormalizeScoresBoundaries(t *testing.T) {
	norm := NormalizeScores(map[string]float64{"a": -5, "b": 0, "c": 5, "d": 1.5})
	cases := map[string]float64{"a": 0.0, "b": 50.0, "c": 100.0, "d": 65.0}
	for id, expected := range cases {
		if norm[id] != expected {
			t.Fatalf("%s: expected %v, got %v", id, expected, norm[id])
		}
	}
}

func TestNormalizeScoresIdempotentFormula(t *testing.T) {
	for _, r := range []float64{-5, -3.3, -0.1, 0, 2.71, 5} {
		expected := math.Round((r+5)/10*100*10) / 10
		got := NormalizeScores(map[string]float64{"x": r})["x"]
		if got != expected {
			t.Fatalf("normalize(%v): expected %v, got %v", r, expected, got)
		}
	}
}

func TestInterpret(t *testing.T) {
	cases := []struct {
		score    float64
		expected string
	}{
		{0, "Low"},
		{29.9, "Low"},
		{30, "Moderate"},
		{69.9, "Moderate"},
		{70, "High"},
		{100, "High"},
	}
	for _, tc := range cases {
		if got := Interpret(tc.score); got != tc.expected {
			t.Fatalf("interpret(%v): expected %s, got %s", tc.score, tc.expected, got)
		}
	}
}

func TestExtremeAxes(t *testing.T) {
	got := ExtremeAxes(map[string]float64{"c": 90, "a": 10, "b": 50, "d": 89.9})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
}

func TestBalanceScore(t *testing.T) {
	if got := BalanceScore(map[string]float64{"axis_1": 50.0, "axis_2": 50.0}); got != 0.0 {
		t.Fatalf("expected 0.0, got %v", got)
	}
	if got := BalanceScore(map[string]float64{"axis_1": 0.0, "axis_2": 100.0}); got != 50.0 {
		t.Fatalf("expected 50.0, got %v", got)
	}
	if got := BalanceScore(nil); got != 0.0 {
		t.Fatalf("expected 0.0 for empty scores, got %v", got)
	}
}
