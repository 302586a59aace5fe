package llm

import "context"

// MockExecutor permite tests sin llamar al backend generador real.
type MockExecutor struct {
	Response []byte
	Err      error
	Calls    int
	// Fn, si está presente, reemplaza la respuesta fija.
	Fn func(ctx context.Context, endpoint string, payload any) ([]byte, error)
}

func (m *MockExecutor) Execute(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	m.Calls++
	if m.Fn != nil {
		return m.Fn(ctx, endpoint, payload)
	}
	return m.Response, m.Err
}
