package service

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"nightloom/internal/domain"
	"nightloom/internal/repository"
)

// mockGeneration sirve contenido del proveedor de fallback como si fuera el
// backend real, contando invocaciones por capacidad.
type mockGeneration struct {
	mu             sync.Mutex
	bootstrapCalls int
	scenesCalls    int
	typesCalls     int
	typesDelay     time.Duration
	provider       *FallbackProvider
}

func newMockGeneration() *mockGeneration {
	return &mockGeneration{provider: NewFallbackProvider()}
}

func (m *mockGeneration) GenerateBootstrap(_ context.Context, initialCharacter string) BootstrapResult {
	m.mu.Lock()
	m.bootstrapCalls++
	m.mu.Unlock()
	axes, keywords, themeID := m.provider.Bootstrap(initialCharacter)
	return BootstrapResult{Axes: axes, Keywords: keywords, ThemeID: themeID}
}

func (m *mockGeneration) GenerateScenes(_ context.Context, _ []domain.Axis, selectedKeyword, themeID string) ScenesResult {
	m.mu.Lock()
	m.scenesCalls++
	m.mu.Unlock()
	return ScenesResult{Scenes: m.provider.Scenes(themeID, selectedKeyword)}
}

func (m *mockGeneration) GenerateTypeProfiles(_ context.Context, _ []domain.Axis, _ map[string]float64, _ string) TypeProfilesResult {
	m.mu.Lock()
	m.typesCalls++
	delay := m.typesDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return TypeProfilesResult{Profiles: m.provider.TypeProfiles()}
}

func (m *mockGeneration) calls() (int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bootstrapCalls, m.scenesCalls, m.typesCalls
}

func newTestOrchestrator(gen *mockGeneration) *SessionOrchestrator {
	return NewSessionOrchestrator(
		repository.NewMemorySessionStore(),
		gen,
		NewScoringEngine(false, zap.NewNop()),
		zap.NewNop(),
	)
}

// playSession lleva una sesión nueva hasta PLAY con las 4 escenas generadas.
func playSession(t *testing.T, o *SessionOrchestrator) *domain.Session {
	t.Helper()
	ctx := context.Background()

	s, err := o.CreateSession(ctx, "夜")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if s.State != domain.StateInit {
		t.Fatalf("expected INIT, got %s", s.State)
	}

	s, err = o.ConfirmKeyword(ctx, s.ID, s.KeywordCandidates[0])
	if err != nil {
		t.Fatalf("confirm keyword: %v", err)
	}
	if s.State != domain.StatePlay {
		t.Fatalf("expected PLAY, got %s", s.State)
	}
	if len(s.Scenes) != domain.SceneCount {
		t.Fatalf("expected %d scenes, got %d", domain.SceneCount, len(s.Scenes))
	}
	return s
}

func recordAllChoices(t *testing.T, o *SessionOrchestrator, s *domain.Session) {
	t.Helper()
	for i := 1; i <= domain.SceneCount; i++ {
		if _, err := o.RecordChoice(context.Background(), s.ID, i, fmt.Sprintf("s%d_c1", i)); err != nil {
			t.Fatalf("record choice scene %d: %v", i, err)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	gen := newMockGeneration()
	o := newTestOrchestrator(gen)

	s := playSession(t, o)
	recordAllChoices(t, o, s)

	result, err := o.GenerateResult(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("generate result: %v", err)
	}
	if result.SessionID != s.ID {
		t.Fatalf("expected session id %s, got %s", s.ID, result.SessionID)
	}
	if len(result.Scores.Raw) != domain.AxisCount || len(result.Scores.Normalized) != domain.AxisCount {
		t.Fatalf("expected scores for %d axes, got raw=%d normalized=%d",
			domain.AxisCount, len(result.Scores.Raw), len(result.Scores.Normalized))
	}
	for id, n := range result.Scores.Normalized {
		if n < 0 || n > 100 {
			t.Fatalf("axis %s: normalized score %v out of [0,100]", id, n)
		}
	}
	if len(result.Type.Profiles) == 0 {
		t.Fatalf("expected type profiles in result")
	}

	stored, err := o.GetScene(context.Background(), s.ID, 1)
	if err != nil {
		t.Fatalf("get scene after result: %v", err)
	}
	if stored.SceneIndex != 1 {
		t.Fatalf("expected scene 1, got %d", stored.SceneIndex)
	}
}

func TestCreateSessionRejectsEmptyCharacter(t *testing.T) {
	o := newTestOrchestrator(newMockGeneration())

	if _, err := o.CreateSession(context.Background(), "   "); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestConfirmKeywordIdempotentAndGuarded(t *testing.T) {
	gen := newMockGeneration()
	o := newTestOrchestrator(gen)
	s := playSession(t, o)

	// Reconfirmar la misma keyword en PLAY no regenera escenas.
	again, err := o.ConfirmKeyword(context.Background(), s.ID, s.SelectedKeyword)
	if err != nil {
		t.Fatalf("expected idempotent confirm, got %v", err)
	}
	if _, scenes, _ := gen.calls(); scenes != 1 {
		t.Fatalf("expected 1 scenes generation, got %d", scenes)
	}
	if again.State != domain.StatePlay {
		t.Fatalf("expected PLAY, got %s", again.State)
	}

	// Una keyword distinta fuera de INIT es un error de integridad.
	if _, err := o.ConfirmKeyword(context.Background(), s.ID, "otra"); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestRecordChoiceDuplicateHandling(t *testing.T) {
	o := newTestOrchestrator(newMockGeneration())
	s := playSession(t, o)

	if _, err := o.RecordChoice(context.Background(), s.ID, 1, "s1_c1"); err != nil {
		t.Fatalf("first record: %v", err)
	}

	// Reenvío idéntico: idempotente.
	updated, err := o.RecordChoice(context.Background(), s.ID, 1, "s1_c1")
	if err != nil {
		t.Fatalf("expected idempotent duplicate, got %v", err)
	}
	if len(updated.Choices) != 1 {
		t.Fatalf("expected 1 choice record, got %d", len(updated.Choices))
	}

	// Misma escena, opción distinta: rechazo.
	if _, err := o.RecordChoice(context.Background(), s.ID, 1, "s1_c2"); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error for conflicting duplicate, got %v", err)
	}
}

func TestRecordChoiceValidation(t *testing.T) {
	o := newTestOrchestrator(newMockGeneration())
	s := playSession(t, o)

	if _, err := o.RecordChoice(context.Background(), s.ID, 9, "s1_c1"); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error for out-of-range index, got %v", err)
	}
	if _, err := o.RecordChoice(context.Background(), s.ID, 2, "ghost"); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error for unknown choice, got %v", err)
	}
}

func TestGenerateResultRequiresFourChoices(t *testing.T) {
	o := newTestOrchestrator(newMockGeneration())
	s := playSession(t, o)

	if _, err := o.RecordChoice(context.Background(), s.ID, 1, "s1_c1"); err != nil {
		t.Fatalf("record choice: %v", err)
	}

	if _, err := o.GenerateResult(context.Background(), s.ID); !domain.IsIntegrityError(err) {
		t.Fatalf("expected integrity error with incomplete choices, got %v", err)
	}
}

func TestGenerateResultRunsPipelineOnce(t *testing.T) {
	gen := newMockGeneration()
	o := newTestOrchestrator(gen)
	s := playSession(t, o)
	recordAllChoices(t, o, s)

	first, err := o.GenerateResult(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("first result: %v", err)
	}
	second, err := o.GenerateResult(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("second result: %v", err)
	}

	if _, _, types := gen.calls(); types != 1 {
		t.Fatalf("expected 1 type analysis, got %d", types)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeat call must return the materialized result")
	}
}

func TestGenerateResultConcurrentCallersShareOneFlight(t *testing.T) {
	gen := newMockGeneration()
	gen.typesDelay = 50 * time.Millisecond
	o := newTestOrchestrator(gen)
	s := playSession(t, o)
	recordAllChoices(t, o, s)

	const callers = 3
	results := make([]*domain.SessionResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.GenerateResult(context.Background(), s.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	if _, _, types := gen.calls(); types != 1 {
		t.Fatalf("expected exactly 1 type analysis under concurrency, got %d", types)
	}
	for i := 1; i < callers; i++ {
		if !reflect.DeepEqual(results[0], results[i]) {
			t.Fatalf("caller %d received a different result", i)
		}
	}

	stored, err := o.store.Get(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.State != domain.StateResult {
		t.Fatalf("expected RESULT state, got %s", stored.State)
	}
}

func TestGenerateResultUnknownSession(t *testing.T) {
	o := newTestOrchestrator(newMockGeneration())

	if _, err := o.GenerateResult(context.Background(), "ghost"); err != repository.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
