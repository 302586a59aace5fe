package service

import (
	"fmt"
	"hash/fnv"

	"nightloom/internal/domain"
)

// FallbackProvider genera contenido estático determinista para cuando el
// backend generador no está disponible o devuelve basura. Es puro: misma
// entrada, misma salida, sin red y sin modo de fallo.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

var fallbackAxes = []domain.Axis{
	{ID: "axis_logic", Name: "Razonamiento", Description: "Cómo se procesan las decisiones bajo incertidumbre.", Direction: "análisis <-> intuición"},
	{ID: "axis_social", Name: "Vínculo", Description: "Peso de los otros en las decisiones propias.", Direction: "independencia <-> pertenencia"},
	{ID: "axis_risk", Name: "Riesgo", Description: "Tolerancia a lo desconocido y a la pérdida.", Direction: "cautela <-> impulso"},
	{ID: "axis_order", Name: "Estructura", Description: "Necesidad de control sobre el entorno.", Direction: "deriva <-> orden"},
}

var fallbackThemes = []string{"umbral", "marea", "niebla", "ascua", "eco"}

var fallbackKeywordSets = [][]string{
	{"silencio", "brújula", "puente"},
	{"espejo", "raíz", "faro"},
	{"semilla", "grieta", "constelación"},
	{"péndulo", "orilla", "llave"},
	{"ceniza", "mapa", "pulso"},
}

var fallbackChoiceTexts = [4]string{
	"Avanzar sin mirar atrás.",
	"Detenerse y observar cada detalle.",
	"Buscar a alguien que conozca el camino.",
	"Improvisar una salida propia.",
}

var fallbackNarratives = [4]string{
	"La noche se abre sobre el tema de %q. Frente a vos, el %s marca un punto de partida que nadie más ve.",
	"El %s quedó atrás, pero %q sigue resonando. Un cruce de caminos exige una decisión inmediata.",
	"A mitad del recorrido, %q cambia de forma. El %s ya no es un refugio sino una pregunta.",
	"Última escena: todo lo que %q significaba se condensa en el %s. Queda un solo gesto por elegir.",
}

// seedIndex deriva un índice estable a partir del carácter inicial.
func seedIndex(seed string, mod int) int {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return int(h.Sum32()) % mod
}

// Bootstrap devuelve el set fijo de 4 ejes, keywords candidatas y un tema,
// todos derivados de forma estable del carácter inicial.
func (p *FallbackProvider) Bootstrap(initialCharacter string) ([]domain.Axis, []string, string) {
	axes := make([]domain.Axis, len(fallbackAxes))
	copy(axes, fallbackAxes)

	keywords := fallbackKeywordSets[seedIndex(initialCharacter, len(fallbackKeywordSets))]
	out := make([]string, len(keywords))
	copy(out, keywords)

	themeID := fallbackThemes[seedIndex(initialCharacter, len(fallbackThemes))]
	return axes, out, themeID
}

// Scenes arma las 4 escenas narrativas para el tema y la keyword elegida.
// Cada opción empuja fuerte un eje distinto, con un contrapeso leve en el
// eje siguiente, para que cualquier recorrido produzca scores diferenciados.
func (p *FallbackProvider) Scenes(themeID, selectedKeyword string) []domain.Scene {
	scenes := make([]domain.Scene, 0, domain.SceneCount)
	for i := 1; i <= domain.SceneCount; i++ {
		choices := make([]domain.Choice, 0, domain.ChoicesPerScene)
		for j := 0; j < domain.ChoicesPerScene; j++ {
			primary := fallbackAxes[j].ID
			counter := fallbackAxes[(j+1)%len(fallbackAxes)].ID
			choices = append(choices, domain.Choice{
				ID:   fmt.Sprintf("s%d_c%d", i, j+1),
				Text: fallbackChoiceTexts[j],
				Weights: domain.WeightsFromMap(map[string]float64{
					primary: 0.8,
					counter: -0.3,
				}),
			})
		}
		scenes = append(scenes, domain.Scene{
			SceneIndex: i,
			ThemeID:    themeID,
			Narrative:  fmt.Sprintf(fallbackNarratives[i-1], selectedKeyword, themeID),
			Choices:    choices,
		})
	}
	return scenes
}

// TypeProfiles devuelve el catálogo estático de perfiles de tipo.
func (p *FallbackProvider) TypeProfiles() []domain.TypeProfile {
	return []domain.TypeProfile{
		{
			Name:         "Cartógrafo",
			Description:  "Ordena el caos antes de moverse; confía en lo que puede medir.",
			Keywords:     []string{"mapa", "método", "paciencia"},
			DominantAxes: []string{"axis_logic", "axis_order"},
			Polarity:     "high",
		},
		{
			Name:         "Corriente",
			Description:  "Decide con el cuerpo; la duda le pesa más que el error.",
			Keywords:     []string{"impulso", "presente", "movimiento"},
			DominantAxes: []string{"axis_risk"},
			Polarity:     "high",
		},
		{
			Name:         "Faro",
			Description:  "Se define por los demás; sostiene y espera ser sostenido.",
			Keywords:     []string{"vínculo", "lealtad", "escucha"},
			DominantAxes: []string{"axis_social"},
			Polarity:     "high",
		},
		{
			Name:         "Umbral",
			Description:  "Habita los comienzos; prefiere la pregunta abierta a la respuesta cerrada.",
			Keywords:     []string{"cambio", "límite", "asombro"},
			DominantAxes: []string{"axis_risk", "axis_logic"},
			Polarity:     "low",
		},
	}
}
