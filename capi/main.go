// ABOUTME: Shared-library entry point exporting the C surface in include/engram.h
// ABOUTME: Build with: go build -buildmode=c-shared -o libengram.so ./capi

// The capi package is the cgo shim between C callers and
// internal/boundary. Every semantic rule of the surface lives in the
// boundary package; the files here only convert pointers, copy one
// struct, and fill error records.
package main

// main never runs under -buildmode=c-shared, but a main package needs
// one to build.
func main() {}
