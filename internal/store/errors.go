// ABOUTME: Typed engine errors with stable kinds for cross-layer classification
// ABOUTME: Every failure surfaced by this package is an *Error carrying a Kind

package store

import (
	"errors"
	"fmt"
)

// Kind categorizes an engine failure. Callers branch on the Kind; the
// message is for humans and carries no contract.
type Kind string

const (
	// KindIo covers filesystem and database access failures.
	KindIo Kind = "IO"

	// KindEncode indicates data could not be written in the store format.
	KindEncode Kind = "ENCODE"

	// KindDecode indicates stored data could not be read back, including
	// stores written by a newer format version.
	KindDecode Kind = "DECODE"

	// KindLock indicates the sidecar lock could not be acquired or released.
	KindLock Kind = "LOCK"

	// KindLocked indicates the store is held by another live process.
	KindLocked Kind = "LOCKED"

	// KindChecksumMismatch indicates a payload no longer matches its
	// recorded content hash.
	KindChecksumMismatch Kind = "CHECKSUM_MISMATCH"

	// KindInvalidHeader indicates the file is not an engram store.
	KindInvalidHeader Kind = "INVALID_HEADER"

	// KindInvalidCatalog indicates the schema catalog is missing required
	// objects.
	KindInvalidCatalog Kind = "INVALID_CATALOG"

	// KindInvalidTimeIndex indicates the timestamp index is unusable.
	KindInvalidTimeIndex Kind = "INVALID_TIME_INDEX"

	// KindLexNotEnabled indicates the lexical index is absent.
	KindLexNotEnabled Kind = "LEX_NOT_ENABLED"

	// KindVecNotEnabled indicates vector search is not built into this
	// engine.
	KindVecNotEnabled Kind = "VEC_NOT_ENABLED"

	// KindCapacityExceeded indicates the configured capacity would be
	// exceeded by a mutation.
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"

	// KindRequiresOpen indicates an operation was invoked on a closed
	// Memory.
	KindRequiresOpen Kind = "REQUIRES_OPEN"

	// KindDoctorNoOp indicates a doctor plan contained nothing to do.
	KindDoctorNoOp Kind = "DOCTOR_NO_OP"

	// KindDoctor indicates a doctor run could not proceed.
	KindDoctor Kind = "DOCTOR"

	// KindInvalidCursor indicates a pagination cursor was malformed.
	KindInvalidCursor Kind = "INVALID_CURSOR"

	// KindInvalidFrame indicates a frame id outside the issued range.
	KindInvalidFrame Kind = "INVALID_FRAME"

	// KindFrameNotFound indicates no frame with the requested id.
	KindFrameNotFound Kind = "FRAME_NOT_FOUND"

	// KindFrameNotFoundByURI indicates no active frame with the requested
	// URI.
	KindFrameNotFoundByURI Kind = "FRAME_NOT_FOUND_BY_URI"

	// KindInvalidQuery indicates a blank or unparseable query.
	KindInvalidQuery Kind = "INVALID_QUERY"

	// KindExtractionFailed indicates content extraction failed during
	// ingestion.
	KindExtractionFailed Kind = "EXTRACTION_FAILED"

	// KindSynthesisFailed indicates the answer synthesizer failed.
	KindSynthesisFailed Kind = "SYNTHESIS_FAILED"

	// KindOpLogCorrupted indicates the operation log is unreadable or
	// inconsistent.
	KindOpLogCorrupted Kind = "OP_LOG_CORRUPTED"

	// KindCheckpointFailed indicates a commit could not flush the WAL.
	KindCheckpointFailed Kind = "CHECKPOINT_FAILED"
)

// Error is the engine failure type. Kind is stable; Msg and the wrapped
// cause are diagnostic only.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// errf builds an *Error with a formatted message.
func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// wrapf builds an *Error around a cause with a formatted message.
func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err. Returns KindIo's zero analog ("") and
// false when err is not an engine error.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsNotFound reports whether err is a frame lookup miss of either flavor.
func IsNotFound(err error) bool {
	return IsKind(err, KindFrameNotFound) || IsKind(err, KindFrameNotFoundByURI)
}

// IsLocked reports whether err means the store is held elsewhere.
func IsLocked(err error) bool {
	return IsKind(err, KindLocked)
}
