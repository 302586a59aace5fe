package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"nightloom/internal/domain"
	"nightloom/internal/llm"
)

// Endpoints por capacidad del backend generador.
const (
	endpointBootstrap = "/v1/bootstrap"
	endpointScenes    = "/v1/scenes"
	endpointTypes     = "/v1/types"
)

// Nombres de capacidad registrados en los fallback flags de la sesión.
const (
	CapabilityBootstrap = "bootstrap"
	CapabilityScenes    = "scenes"
	CapabilityTypes     = "types"
)

// GenerationFacade envuelve al gateway por capacidad y degrada al proveedor
// de fallback ante cualquier fallo del backend o de parseo estructural.
// Garantía central: toda operación devuelve siempre un resultado usable;
// ningún fallo del backend se propaga al caller. FallbackUsed se reporta,
// nunca se oculta.
type GenerationFacade struct {
	executor llm.Executor
	fallback *FallbackProvider
	logger   *zap.Logger
}

func NewGenerationFacade(executor llm.Executor, fallback *FallbackProvider, logger *zap.Logger) *GenerationFacade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationFacade{
		executor: executor,
		fallback: fallback,
		logger:   logger,
	}
}

// BootstrapResult es la salida de la capacidad de bootstrap.
type BootstrapResult struct {
	Axes         []domain.Axis
	Keywords     []string
	ThemeID      string
	FallbackUsed bool
}

// ScenesResult es la salida de la capacidad de escenas.
type ScenesResult struct {
	Scenes       []domain.Scene
	FallbackUsed bool
}

// TypeProfilesResult es la salida del análisis de perfiles de tipo.
type TypeProfilesResult struct {
	Profiles     []domain.TypeProfile
	FallbackUsed bool
}

type bootstrapPayload struct {
	InitialCharacter string `json:"initial_character"`
}

type bootstrapResponse struct {
	Axes     []domain.Axis `json:"axes"`
	Keywords []string      `json:"keywords"`
	ThemeID  string        `json:"theme_id"`
}

func (r *bootstrapResponse) validate() error {
	if len(r.Axes) != domain.AxisCount {
		return fmt.Errorf("expected %d axes, got %d", domain.AxisCount, len(r.Axes))
	}
	seen := make(map[string]bool, len(r.Axes))
	for _, a := range r.Axes {
		if a.ID == "" || a.Name == "" {
			return fmt.Errorf("axis with empty id or name")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate axis id %q", a.ID)
		}
		seen[a.ID] = true
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("no keyword candidates")
	}
	if r.ThemeID == "" {
		return fmt.Errorf("empty theme id")
	}
	return nil
}

// GenerateBootstrap obtiene ejes, keywords candidatas y tema para el carácter
// inicial. No tiene modo de fallo: ante cualquier problema degrada al fallback.
func (f *GenerationFacade) GenerateBootstrap(ctx context.Context, initialCharacter string) BootstrapResult {
	raw, err := f.executor.Execute(ctx, endpointBootstrap, bootstrapPayload{InitialCharacter: initialCharacter})
	if err == nil {
		var resp bootstrapResponse
		if err = decodeBackendJSON(raw, &resp); err == nil {
			if err = resp.validate(); err == nil {
				return BootstrapResult{
					Axes:     resp.Axes,
					Keywords: resp.Keywords,
					ThemeID:  resp.ThemeID,
				}
			}
		}
	}

	f.logDegraded(CapabilityBootstrap, err)
	axes, keywords, themeID := f.fallback.Bootstrap(initialCharacter)
	return BootstrapResult{
		Axes:         axes,
		Keywords:     keywords,
		ThemeID:      themeID,
		FallbackUsed: true,
	}
}

type scenesPayload struct {
	Axes            []domain.Axis `json:"axes"`
	SelectedKeyword string        `json:"selected_keyword"`
	ThemeID         string        `json:"theme_id"`
}

type scenesResponse struct {
	Scenes []domain.Scene `json:"scenes"`
}

func (r *scenesResponse) validate() error {
	if len(r.Scenes) != domain.SceneCount {
		return fmt.Errorf("expected %d scenes, got %d", domain.SceneCount, len(r.Scenes))
	}
	seenIndex := make(map[int]bool, len(r.Scenes))
	for _, sc := range r.Scenes {
		if sc.SceneIndex < 1 || sc.SceneIndex > domain.SceneCount {
			return fmt.Errorf("scene index %d out of range", sc.SceneIndex)
		}
		if seenIndex[sc.SceneIndex] {
			return fmt.Errorf("duplicate scene index %d", sc.SceneIndex)
		}
		seenIndex[sc.SceneIndex] = true

		if len(sc.Choices) != domain.ChoicesPerScene {
			return fmt.Errorf("scene %d: expected %d choices, got %d", sc.SceneIndex, domain.ChoicesPerScene, len(sc.Choices))
		}
		seenChoice := make(map[string]bool, len(sc.Choices))
		for _, ch := range sc.Choices {
			if ch.ID == "" {
				return fmt.Errorf("scene %d: choice with empty id", sc.SceneIndex)
			}
			if seenChoice[ch.ID] {
				return fmt.Errorf("scene %d: duplicate choice id %q", sc.SceneIndex, ch.ID)
			}
			seenChoice[ch.ID] = true
			for _, e := range ch.Weights.AsEntries() {
				if err := e.Validate(); err != nil {
					return fmt.Errorf("scene %d choice %s: %w", sc.SceneIndex, ch.ID, err)
				}
			}
		}
	}
	return nil
}

// GenerateScenes obtiene las 4 escenas para los ejes, la keyword elegida y el
// tema. Los pesos viajan en su vista de entradas (id + nombre legible) porque
// el backend necesita los nombres de los ejes para redactar.
func (f *GenerationFacade) GenerateScenes(ctx context.Context, axes []domain.Axis, selectedKeyword, themeID string) ScenesResult {
	raw, err := f.executor.Execute(ctx, endpointScenes, scenesPayload{
		Axes:            axes,
		SelectedKeyword: selectedKeyword,
		ThemeID:         themeID,
	})
	if err == nil {
		var resp scenesResponse
		if err = decodeBackendJSON(raw, &resp); err == nil {
			if err = resp.validate(); err == nil {
				return ScenesResult{Scenes: resp.Scenes}
			}
		}
	}

	f.logDegraded(CapabilityScenes, err)
	return ScenesResult{
		Scenes:       f.fallback.Scenes(themeID, selectedKeyword),
		FallbackUsed: true,
	}
}

type typesPayload struct {
	Axes            []domain.Axis      `json:"axes"`
	RawScores       map[string]float64 `json:"raw_scores"`
	SelectedKeyword string             `json:"selected_keyword"`
}

type typesResponse struct {
	Profiles []domain.TypeProfile `json:"profiles"`
}

func (r *typesResponse) validate() error {
	if len(r.Profiles) == 0 {
		return fmt.Errorf("no type profiles")
	}
	for i, p := range r.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile %d: empty name", i)
		}
	}
	return nil
}

// GenerateTypeProfiles obtiene el análisis de tipo a partir de los scores
// crudos acumulados.
func (f *GenerationFacade) GenerateTypeProfiles(ctx context.Context, axes []domain.Axis, rawScores map[string]float64, selectedKeyword string) TypeProfilesResult {
	raw, err := f.executor.Execute(ctx, endpointTypes, typesPayload{
		Axes:            axes,
		RawScores:       rawScores,
		SelectedKeyword: selectedKeyword,
	})
	if err == nil {
		var resp typesResponse
		if err = decodeBackendJSON(raw, &resp); err == nil {
			if err = resp.validate(); err == nil {
				return TypeProfilesResult{Profiles: resp.Profiles}
			}
		}
	}

	f.logDegraded(CapabilityTypes, err)
	return TypeProfilesResult{
		Profiles:     f.fallback.TypeProfiles(),
		FallbackUsed: true,
	}
}

func (f *GenerationFacade) logDegraded(capability string, err error) {
	f.logger.Warn("generation degraded to fallback",
		zap.String("capability", capability),
		zap.Error(err),
	)
}
