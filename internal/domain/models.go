package domain

import "time"

// SessionState identifica la fase del flujo de diagnóstico.
type SessionState string

const (
	StateInit   SessionState = "INIT"
	StatePlay   SessionState = "PLAY"
	StateResult SessionState = "RESULT"
)

const (
	// SceneCount es la cantidad fija de escenas por sesión.
	SceneCount = 4
	// AxisCount es la cantidad fija de ejes por sesión.
	AxisCount = 4
	// ChoicesPerScene es la cantidad fija de opciones por escena.
	ChoicesPerScene = 4

	// RawScoreMin y RawScoreMax acotan el score crudo acumulado por eje.
	RawScoreMin = -5.0
	RawScoreMax = 5.0
)

// Axis es una dimensión bipolar de personalidad. Inmutable tras el bootstrap:
// el set de 4 ejes queda fijo para toda la vida de la sesión.
type Axis struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Direction   string `json:"direction,omitempty"` // Ej: "lógica <-> intuición"
}

// Scene es uno de los 4 pasos narrativos, con sus 4 opciones ponderadas.
// Se generan y adjuntan de forma perezosa, pero el índice es único por sesión.
type Scene struct {
	SceneIndex int      `json:"scene_index"`
	ThemeID    string   `json:"theme_id"`
	Narrative  string   `json:"narrative"`
	Choices    []Choice `json:"choices"`
}

// FindChoice busca una opción por id dentro de la escena.
func (s Scene) FindChoice(choiceID string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == choiceID {
			return c, true
		}
	}
	return Choice{}, false
}

// Choice es una opción seleccionable con su influencia por eje.
type Choice struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Weights Weights `json:"weights"`
}

// ChoiceRecord es una entrada del log append-only de selecciones del usuario.
type ChoiceRecord struct {
	SceneIndex int       `json:"scene_index"`
	ChoiceID   string    `json:"choice_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// TypeProfile es la salida del análisis de tipo; no se muta tras su creación.
type TypeProfile struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Keywords     []string          `json:"keywords,omitempty"`
	DominantAxes []string          `json:"dominant_axes,omitempty"`
	Polarity     string            `json:"polarity,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// TypeResult agrupa los perfiles generados y si provinieron del fallback.
type TypeResult struct {
	Profiles     []TypeProfile `json:"profiles"`
	FallbackUsed bool          `json:"fallback_used"`
}

// ScoreSet expone los scores crudos y normalizados por id de eje.
type ScoreSet struct {
	Raw        map[string]float64 `json:"raw"`
	Normalized map[string]float64 `json:"normalized"`
}

// SessionResult es el resultado materializado de una sesión en estado RESULT.
type SessionResult struct {
	SessionID string     `json:"session_id"`
	Type      TypeResult `json:"type"`
	Scores    ScoreSet   `json:"scores"`
}

// Session agrega todo el estado de una sesión de diagnóstico. Es la unidad de
// propiedad y de control de concurrencia: el orquestador es el único escritor.
type Session struct {
	ID                string             `json:"id"`
	State             SessionState       `json:"state"`
	InitialCharacter  string             `json:"initial_character"`
	ThemeID           string             `json:"theme_id"`
	Axes              []Axis             `json:"axes"`
	KeywordCandidates []string           `json:"keyword_candidates,omitempty"`
	SelectedKeyword   string             `json:"selected_keyword,omitempty"`
	Scenes            []Scene            `json:"scenes,omitempty"`
	Choices           []ChoiceRecord     `json:"choices,omitempty"`
	RawScores         map[string]float64 `json:"raw_scores,omitempty"`
	NormalizedScores  map[string]float64 `json:"normalized_scores,omitempty"`
	FallbackFlags     []string           `json:"fallback_flags,omitempty"`
	Result            *SessionResult     `json:"result,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// SceneByIndex devuelve la escena con el índice dado, si ya fue generada.
func (s *Session) SceneByIndex(index int) (Scene, bool) {
	for _, sc := range s.Scenes {
		if sc.SceneIndex == index {
			return sc, true
		}
	}
	return Scene{}, false
}

// ChoiceRecordFor devuelve el registro de selección para un índice de escena.
func (s *Session) ChoiceRecordFor(index int) (ChoiceRecord, bool) {
	for _, r := range s.Choices {
		if r.SceneIndex == index {
			return r, true
		}
	}
	return ChoiceRecord{}, false
}

// HasAxis indica si el id pertenece al set fijo de ejes de la sesión.
func (s *Session) HasAxis(axisID string) bool {
	for _, a := range s.Axes {
		if a.ID == axisID {
			return true
		}
	}
	return false
}
