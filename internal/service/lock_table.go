package service

import "sync"

// lockTable serializa mutaciones por id de sesión. Sesiones distintas nunca
// se serializan entre sí. Cada entrada se descarta cuando el último titular
// libera, para no acumular locks de sesiones ya terminadas.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire bloquea hasta tomar el lock exclusivo del id y devuelve la entrada
// que debe pasarse a release.
func (t *lockTable) acquire(id string) *lockEntry {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &lockEntry{}
		t.entries[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return e
}

func (t *lockTable) release(id string, e *lockEntry) {
	e.mu.Unlock()

	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, id)
	}
	t.mu.Unlock()
}
