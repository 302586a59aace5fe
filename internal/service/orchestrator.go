package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"nightloom/internal/domain"
	"nightloom/internal/repository"
)

// ErrSceneNotFound se devuelve al pedir una escena aún no generada o con
// índice fuera de rango.
var ErrSceneNotFound = errors.New("scene not found")

// generationService es la vista del orquestador sobre la fachada de generación.
type generationService interface {
	GenerateBootstrap(ctx context.Context, initialCharacter string) BootstrapResult
	GenerateScenes(ctx context.Context, axes []domain.Axis, selectedKeyword, themeID string) ScenesResult
	GenerateTypeProfiles(ctx context.Context, axes []domain.Axis, rawScores map[string]float64, selectedKeyword string) TypeProfilesResult
}

// SessionOrchestrator es el único escritor del ciclo de vida de una sesión:
// transiciones de estado, log de selecciones y materialización del resultado.
// Las mutaciones de una misma sesión se serializan con un lock por id; la
// generación del resultado se deduplica además con singleflight para que el
// camino caro corra a lo sumo una vez por sesión.
type SessionOrchestrator struct {
	store   repository.SessionStore
	gen     generationService
	scoring *ScoringEngine
	locks   *lockTable
	flights singleflight.Group
	logger  *zap.Logger
}

func NewSessionOrchestrator(
	store repository.SessionStore,
	gen generationService,
	scoring *ScoringEngine,
	logger *zap.Logger,
) *SessionOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionOrchestrator{
		store:   store,
		gen:     gen,
		scoring: scoring,
		locks:   newLockTable(),
		logger:  logger,
	}
}

// CreateSession arranca una sesión en INIT con ejes, keywords candidatas y
// tema provistos por la fachada de generación.
func (o *SessionOrchestrator) CreateSession(ctx context.Context, initialCharacter string) (*domain.Session, error) {
	seed := strings.TrimSpace(initialCharacter)
	if seed == "" {
		return nil, domain.NewIntegrityError("empty initial character")
	}

	boot := o.gen.GenerateBootstrap(ctx, seed)

	now := time.Now().UTC()
	s := &domain.Session{
		ID:                uuid.NewString(),
		State:             domain.StateInit,
		InitialCharacter:  seed,
		ThemeID:           boot.ThemeID,
		Axes:              boot.Axes,
		KeywordCandidates: boot.Keywords,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if boot.FallbackUsed {
		s.FallbackFlags = append(s.FallbackFlags, CapabilityBootstrap)
	}

	if err := o.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("theme_id", s.ThemeID),
		zap.Bool("fallback", boot.FallbackUsed),
	)
	return s, nil
}

// ConfirmKeyword fija la keyword elegida, genera las 4 escenas y transiciona
// INIT -> PLAY. Reconfirmar la misma keyword ya en PLAY es idempotente.
func (o *SessionOrchestrator) ConfirmKeyword(ctx context.Context, sessionID, keyword string) (*domain.Session, error) {
	kw := strings.TrimSpace(keyword)
	if kw == "" {
		return nil, domain.NewIntegrityError("empty keyword")
	}

	lock := o.locks.acquire(sessionID)
	defer o.locks.release(sessionID, lock)

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.State != domain.StateInit {
		if s.State == domain.StatePlay && s.SelectedKeyword == kw {
			return s, nil
		}
		return nil, domain.NewIntegrityError("keyword confirm not allowed in state %s", s.State)
	}

	res := o.gen.GenerateScenes(ctx, s.Axes, kw, s.ThemeID)

	s.SelectedKeyword = kw
	s.Scenes = res.Scenes
	s.State = domain.StatePlay
	if res.FallbackUsed {
		s.FallbackFlags = append(s.FallbackFlags, CapabilityScenes)
	}
	s.UpdatedAt = time.Now().UTC()

	if err := o.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return s, nil
}

// GetScene es una lectura pura: no toma el lock de la sesión para no frenar
// lecturas detrás de una generación en curso.
func (o *SessionOrchestrator) GetScene(ctx context.Context, sessionID string, sceneIndex int) (domain.Scene, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Scene{}, err
	}
	scene, ok := s.SceneByIndex(sceneIndex)
	if !ok {
		return domain.Scene{}, ErrSceneNotFound
	}
	return scene, nil
}

// RecordChoice anota una selección para una escena en estado PLAY. Reenviar
// la misma selección es idempotente; una selección distinta para una escena
// ya respondida es un error de integridad.
func (o *SessionOrchestrator) RecordChoice(ctx context.Context, sessionID string, sceneIndex int, choiceID string) (*domain.Session, error) {
	if sceneIndex < 1 || sceneIndex > domain.SceneCount {
		return nil, domain.NewIntegrityError("scene index %d out of range [1,%d]", sceneIndex, domain.SceneCount)
	}

	lock := o.locks.acquire(sessionID)
	defer o.locks.release(sessionID, lock)

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.State != domain.StatePlay {
		return nil, domain.NewIntegrityError("choice recording not allowed in state %s", s.State)
	}

	scene, ok := s.SceneByIndex(sceneIndex)
	if !ok {
		return nil, domain.NewIntegrityError("scene %d not generated yet", sceneIndex)
	}
	if _, ok := scene.FindChoice(choiceID); !ok {
		return nil, domain.NewIntegrityError("scene %d: choice %q does not exist", sceneIndex, choiceID)
	}

	if prev, ok := s.ChoiceRecordFor(sceneIndex); ok {
		if prev.ChoiceID == choiceID {
			return s, nil
		}
		return nil, domain.NewIntegrityError("scene %d already answered with %q", sceneIndex, prev.ChoiceID)
	}

	s.Choices = append(s.Choices, domain.ChoiceRecord{
		SceneIndex: sceneIndex,
		ChoiceID:   choiceID,
		Timestamp:  time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()

	if err := o.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return s, nil
}

// GenerateResult materializa el resultado de la sesión a lo sumo una vez:
// el primer caller ejecuta el pipeline caro (scoring -> normalización ->
// análisis de tipo -> persistencia -> RESULT) dentro de un vuelo singleflight
// por id de sesión; los que llegan durante el vuelo esperan y comparten el
// mismo resultado, y los que llegan después leen el valor ya materializado.
func (o *SessionOrchestrator) GenerateResult(ctx context.Context, sessionID string) (*domain.SessionResult, error) {
	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.State == domain.StateResult && s.Result != nil {
		return s.Result, nil
	}

	// El pipeline corre sin la cancelación del caller: una vez arrancado,
	// termina o expira por sus propios timeouts, y su resultado vale para
	// todos los callers del vuelo.
	v, err, _ := o.flights.Do(sessionID, func() (any, error) {
		return o.runResultPipeline(context.WithoutCancel(ctx), sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SessionResult), nil
}

func (o *SessionOrchestrator) runResultPipeline(ctx context.Context, sessionID string) (*domain.SessionResult, error) {
	lock := o.locks.acquire(sessionID)
	defer o.locks.release(sessionID, lock)

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Un vuelo anterior pudo haber materializado mientras esperábamos el lock.
	if s.State == domain.StateResult && s.Result != nil {
		return s.Result, nil
	}

	raw, warnings, err := o.scoring.CalculateRawScores(s)
	if err != nil {
		return nil, err
	}
	norm := NormalizeScores(raw)

	types := o.gen.GenerateTypeProfiles(ctx, s.Axes, raw, s.SelectedKeyword)

	result := &domain.SessionResult{
		SessionID: s.ID,
		Type: domain.TypeResult{
			Profiles:     types.Profiles,
			FallbackUsed: types.FallbackUsed,
		},
		Scores: domain.ScoreSet{
			Raw:        raw,
			Normalized: norm,
		},
	}

	s.RawScores = raw
	s.NormalizedScores = norm
	s.Result = result
	s.State = domain.StateResult
	if types.FallbackUsed {
		s.FallbackFlags = append(s.FallbackFlags, CapabilityTypes)
	}
	s.UpdatedAt = time.Now().UTC()

	if err := o.store.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}

	o.logger.Info("session result materialized",
		zap.String("session_id", s.ID),
		zap.Int("warnings", len(warnings)),
		zap.Bool("fallback", types.FallbackUsed),
		zap.Float64("balance", BalanceScore(norm)),
	)
	return result, nil
}
