package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// WeightEntry es la vista ordenada de un peso por eje, con nombre legible
// para consumo del backend generador.
type WeightEntry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Validate verifica las restricciones de construcción de una entrada.
func (e WeightEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return NewIntegrityError("weight entry: empty axis id")
	}
	if strings.TrimSpace(e.Name) == "" {
		return NewIntegrityError("weight entry %q: empty axis name", e.ID)
	}
	if e.Score < -1.0 || e.Score > 1.0 {
		return NewIntegrityError("weight entry %q: score %.2f out of [-1,1]", e.ID, e.Score)
	}
	return nil
}

type weightsKind int

const (
	weightsEmpty weightsKind = iota
	weightsMap
	weightsEntries
)

// Weights modela la representación polimórfica de los pesos de una opción:
// o bien un mapa id->score, o bien una lista ordenada de WeightEntry.
// Ambas vistas son interconvertibles sin pérdida; al convertir desde el mapa
// se sintetiza un nombre placeholder (el propio id).
type Weights struct {
	kind    weightsKind
	entries []WeightEntry
}

// WeightsFromMap construye los pesos desde la vista id->score.
// Los ids se ordenan para que la vista de entradas sea estable.
func WeightsFromMap(m map[string]float64) Weights {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]WeightEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, WeightEntry{ID: id, Name: id, Score: m[id]})
	}
	return Weights{kind: weightsMap, entries: entries}
}

// WeightsFromEntries construye los pesos desde la vista ordenada, validando
// cada entrada. Entradas sin score aportan 0.0.
func WeightsFromEntries(entries []WeightEntry) (Weights, error) {
	copied := make([]WeightEntry, len(entries))
	copy(copied, entries)
	for i := range copied {
		if strings.TrimSpace(copied[i].Name) == "" && strings.TrimSpace(copied[i].ID) != "" {
			copied[i].Name = copied[i].ID
		}
		if err := copied[i].Validate(); err != nil {
			return Weights{}, err
		}
	}
	return Weights{kind: weightsEntries, entries: copied}, nil
}

// AsMap devuelve la vista canónica id->score usada por el motor de scoring.
func (w Weights) AsMap() map[string]float64 {
	m := make(map[string]float64, len(w.entries))
	for _, e := range w.entries {
		m[e.ID] = e.Score
	}
	return m
}

// AsEntries devuelve la vista ordenada usada para armar payloads del backend.
func (w Weights) AsEntries() []WeightEntry {
	out := make([]WeightEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len devuelve la cantidad de ejes con peso declarado.
func (w Weights) Len() int { return len(w.entries) }

// MarshalJSON serializa en la representación de origen: objeto id->score si
// los pesos nacieron de un mapa, lista de entradas en caso contrario.
func (w Weights) MarshalJSON() ([]byte, error) {
	if w.kind == weightsMap {
		return json.Marshal(w.AsMap())
	}
	if w.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w.entries)
}

// UnmarshalJSON acepta ambas representaciones del backend generador.
func (w *Weights) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*w = Weights{}
		return nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]float64
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("weights as map: %w", err)
		}
		for id, score := range m {
			if err := (WeightEntry{ID: id, Name: id, Score: score}).Validate(); err != nil {
				return err
			}
		}
		*w = WeightsFromMap(m)
		return nil
	case '[':
		var entries []WeightEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("weights as entries: %w", err)
		}
		parsed, err := WeightsFromEntries(entries)
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	default:
		return fmt.Errorf("weights: unexpected JSON form %q", trimmed[:1])
	}
}
