// ABOUTME: Handle registry mapping opaque uint64 handles to open engine instances
// ABOUTME: Zero is never issued, lookups never touch a freed instance

package boundary

import (
	"sync"

	"github.com/engramdb/engram/internal/store"
)

// Handle identifies one open store to C callers. Zero is invalid and
// never issued. Handles are not reused within a process lifetime.
type Handle uint64

// registry guards the handle table. The mutex covers the table only; a
// given engine instance stays single-caller by contract.
type registry struct {
	mu   sync.Mutex
	next Handle
	open map[Handle]*store.Memory
}

var handles = &registry{next: 1, open: make(map[Handle]*store.Memory)}

func (r *registry) add(m *store.Memory) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := r.next
	r.next++
	r.open[handle] = m
	return handle
}

func (r *registry) get(handle Handle) (*store.Memory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.open[handle]
	return m, ok
}

func (r *registry) remove(handle Handle) (*store.Memory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.open[handle]
	if ok {
		delete(r.open, handle)
	}
	return m, ok
}

// resolve looks a handle up for an operation. Stale, closed and zero
// handles all fail here with CodeInvalidHandle before the engine is
// touched.
func resolve(handle Handle) (*store.Memory, *Fault) {
	m, ok := handles.get(handle)
	if !ok {
		return nil, invalidHandle(handle)
	}
	return m, nil
}
