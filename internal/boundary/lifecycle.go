// ABOUTME: Lifecycle adapters: version, features, create, open, close
// ABOUTME: Create and Open register engine instances; Close retires handles idempotently

package boundary

import (
	"github.com/engramdb/engram/internal/store"
)

// Version returns the engine version. The string is static for the
// lifetime of the process.
func Version() string { return store.Version }

// Features returns the capability bitmask of this build.
func Features() uint32 { return store.Features() }

// Create initializes a new store at path and returns a handle to it.
// The path must not already exist.
func Create(path []byte) (Handle, *Fault) {
	p, fault := requireText(path, "path")
	if fault != nil {
		return 0, fault
	}
	m, err := store.Create(p)
	if err != nil {
		return 0, faultFrom(err)
	}
	return handles.add(m), nil
}

// Open opens an existing store at path and returns a handle to it.
func Open(path []byte) (Handle, *Fault) {
	p, fault := requireText(path, "path")
	if fault != nil {
		return 0, fault
	}
	m, err := store.Open(p)
	if err != nil {
		return 0, faultFrom(err)
	}
	return handles.add(m), nil
}

// Close closes the store behind handle and retires the handle. Unknown,
// zero and already closed handles are a no-op, mirroring free semantics;
// any later use of the handle fails with CodeInvalidHandle.
func Close(handle Handle) *Fault {
	m, ok := handles.remove(handle)
	if !ok {
		return nil
	}
	if err := m.Close(); err != nil {
		return faultFrom(err)
	}
	return nil
}
