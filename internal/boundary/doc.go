// ABOUTME: Boundary semantics between the C ABI and the engram engine
// ABOUTME: Stable error codes, handle registry, marshalling rules, operation adapters

// Package boundary holds every testable rule of the C-callable surface:
// the stable numeric error taxonomy, the handle registry, UTF-8 and JSON
// marshalling, and an adapter per exported C function. The capi shim above
// it converts pointers and nothing else, so everything a C caller can
// observe is decided (and tested) here without cgo.
//
// Operations run on background contexts; the C surface carries no
// cancellation.
package boundary
