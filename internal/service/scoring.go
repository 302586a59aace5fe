package service

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"nightloom/internal/domain"
)

// ScoringEngine convierte el log de selecciones de una sesión en scores por
// eje. Con strict=false (default) los ids de eje desconocidos o ausentes en
// los pesos de una opción se toleran como aporte 0 con un warning; con
// strict=true se rechazan como error de integridad antes de puntuar.
type ScoringEngine struct {
	strict bool
	logger *zap.Logger
}

func NewScoringEngine(strict bool, logger *zap.Logger) *ScoringEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoringEngine{strict: strict, logger: logger}
}

// CalculateRawScores acumula los pesos de las 4 selecciones sobre el set fijo
// de ejes de la sesión y acota cada suma a [-5,5]. Precondición: exactamente
// 4 ChoiceRecords, cada uno resoluble a una escena y opción ya generadas;
// cualquier incumplimiento es un error de integridad fatal.
func (e *ScoringEngine) CalculateRawScores(s *domain.Session) (map[string]float64, []string, error) {
	if len(s.Choices) != domain.SceneCount {
		return nil, nil, domain.NewIntegrityError("expected %d choice records, got %d", domain.SceneCount, len(s.Choices))
	}

	acc := make(map[string]float64, len(s.Axes))
	for _, axis := range s.Axes {
		acc[axis.ID] = 0.0
	}

	var warnings []string
	for _, rec := range s.Choices {
		scene, ok := s.SceneByIndex(rec.SceneIndex)
		if !ok {
			return nil, nil, domain.NewIntegrityError("choice record references missing scene %d", rec.SceneIndex)
		}
		choice, ok := scene.FindChoice(rec.ChoiceID)
		if !ok {
			return nil, nil, domain.NewIntegrityError("scene %d: choice %q not found", rec.SceneIndex, rec.ChoiceID)
		}

		weights := choice.Weights.AsMap()
		for _, axis := range s.Axes {
			score, present := weights[axis.ID]
			if !present {
				warnings = append(warnings, fmt.Sprintf("scene %d choice %s: axis %q missing from weights, contributing 0", rec.SceneIndex, rec.ChoiceID, axis.ID))
				continue
			}
			acc[axis.ID] += score
		}

		// Ids que el backend inventó fuera del set fijo: se ignoran para el
		// puntaje porque su salida es semi-confiable, nunca fatal en modo laxo.
		unknown := make([]string, 0)
		for id := range weights {
			if !s.HasAxis(id) {
				unknown = append(unknown, id)
			}
		}
		sort.Strings(unknown)
		for _, id := range unknown {
			warnings = append(warnings, fmt.Sprintf("scene %d choice %s: unknown axis %q in weights, ignored", rec.SceneIndex, rec.ChoiceID, id))
		}
	}

	if e.strict && len(warnings) > 0 {
		return nil, warnings, domain.NewIntegrityError("strict weights policy: %s", warnings[0])
	}

	for _, w := range warnings {
		e.logger.Warn("score consistency", zap.String("session_id", s.ID), zap.String("detail", w))
	}

	for id, sum := range acc {
		acc[id] = clampRawScore(sum)
	}
	return acc, warnings, nil
}

func clampRawScore(v float64) float64 {
	if v < domain.RawScoreMin {
		return domain.RawScoreMin
	}
	if v > domain.RawScoreMax {
		return domain.RawScoreMax
	}
	return v
}

// NormalizeScores mapea cada score crudo de [-5,5] a [0,100] en forma afín,
// redondeado a un decimal. Es pura e idempotente sobre el mismo input.
func NormalizeScores(raw map[string]float64) map[string]float64 {
	norm := make(map[string]float64, len(raw))
	for id, r := range raw {
		n := (r - domain.RawScoreMin) / (domain.RawScoreMax - domain.RawScoreMin) * 100
		norm[id] = math.Round(n*10) / 10
	}
	return norm
}

// Interpret clasifica un score normalizado en Low (<30), High (>=70)
// o Moderate.
func Interpret(score float64) string {
	switch {
	case score < 30:
		return "Low"
	case score >= 70:
		return "High"
	default:
		return "Moderate"
	}
}

// ExtremeAxes devuelve, ordenados, los ids de eje con score normalizado
// extremo (<=10 o >=90).
func ExtremeAxes(scores map[string]float64) []string {
	var out []string
	for id, s := range scores {
		if s <= 10 || s >= 90 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// BalanceScore es el desvío estándar poblacional de los scores normalizados,
// redondeado a dos decimales: 0 es un resultado perfectamente parejo, valores
// mayores indican un perfil más polarizado.
func BalanceScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return math.Round(math.Sqrt(variance)*100) / 100
}
