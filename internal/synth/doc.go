// Package synth turns retrieved context into answers.
//
// The store's Ask operation accepts a Synthesizer collaborator; this
// package provides the OpenAI-backed one used by engramctl when
// synthesis is enabled. The C surface never wires one in, so library
// callers always get context-only responses.
//
// The base URL is overridable for OpenAI-compatible endpoints and for
// tests against a local fake.
package synth
