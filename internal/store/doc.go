// Package store implements the engram memory engine: a single-file,
// content-addressed frame store for AI agents backed by SQLite.
//
// # Architecture
//
// One open store is one *Memory bound to one .eng file. The file is a
// SQLite database in WAL mode carrying the engram schema:
//
//   - meta: store identity (uuid), frame id counter, committed op sequence,
//     capacity and chunking settings
//   - frames: the content frames (payload, blake2b-256 content hash,
//     extracted search text, tags/labels, chunk linkage, tombstones)
//   - frames_fts: FTS5 lexical index over search text and titles, kept in
//     sync by triggers
//   - ops: append-only operation log; commits record the durable sequence
//
// A sidecar <path>.lock file enforces the single-owner contract across
// processes. Opening a store held by a live process fails with Locked;
// locks left behind by dead processes are broken with a warning.
//
// # Data Model
//
//   - Frame: one remembered item. Raw payload bytes are kept verbatim
//     (unless ingested with NoRaw) alongside extracted plain text used for
//     search. Long texts are chunked into child frames linked by ParentID
//     and ChunkIndex; the parent keeps the payload and full text but stays
//     out of the lexical index so hits land on chunks.
//   - Op: one mutation (put, delete) with a monotonically increasing
//     sequence. DeleteFrame returns the sequence of its op.
//
// # Operations
//
// Mutation: Put, PutWithOptions, DeleteFrame, Commit. Query: FrameByID,
// FrameByURI, FrameContent, FrameCount, Search, Timeline, Ask, Stats.
// Maintenance runs against a closed store by path: Verify, Doctor,
// PlanDoctor, ApplyDoctor.
//
// # Error Handling
//
// Failures are *Error values carrying a Kind (KindIo, KindLocked,
// KindFrameNotFound, ...). Use errors.As to recover the Kind and errors.Is
// against predicate helpers. Wrapped causes are preserved.
//
// A Memory is not safe for concurrent use; callers serialize access.
package store
