// ABOUTME: Stable numeric error codes shared with include/engram.h
// ABOUTME: Values are ABI: they never change meaning and gaps stay reserved

package boundary

import "fmt"

// Code is the numeric error taxonomy of the C surface. Every value here
// appears under the same number in include/engram.h; once published a
// number keeps its meaning forever. Bands group related failures and
// unassigned values inside a band stay reserved.
type Code int32

// CodeOk signals success. Error out-parameters are reset to it on entry.
const CodeOk Code = 0

// I/O and file integrity (1-10).
const (
	CodeIo               Code = 1
	CodeEncode           Code = 2
	CodeDecode           Code = 3
	CodeLock             Code = 4
	CodeLocked           Code = 5
	CodeChecksumMismatch Code = 6
	CodeInvalidHeader    Code = 7

	// CodeEncryptedFile is reserved; this build never encrypts stores.
	CodeEncryptedFile Code = 8

	CodeInvalidCatalog   Code = 9
	CodeInvalidTimeIndex Code = 10
)

// Index availability (11-20). Only the lexical index exists in this
// build; the vector and visual values are reserved for engines that
// carry those features.
const (
	CodeLexNotEnabled        Code = 11
	CodeVecNotEnabled        Code = 12
	CodeClipNotEnabled       Code = 13
	CodeVecDimensionMismatch Code = 14
)

// Capacity (21-30).
const (
	CodeCapacityExceeded Code = 24
)

// State preconditions and maintenance (31-40).
const (
	CodeRequiresOpen Code = 32
	CodeDoctorNoOp   Code = 33
	CodeDoctor       Code = 34
)

// Feature and query validity (41-50).
const (
	CodeFeatureUnavailable Code = 41
	CodeInvalidCursor      Code = 42
	CodeInvalidFrame       Code = 43
	CodeFrameNotFound      Code = 44
	CodeFrameNotFoundByURI Code = 45
	CodeInvalidQuery       Code = 46
)

// 51-60 are reserved for signature verification.

// Processing failures (61-70). Embedding and rerank values are reserved
// alongside the vector feature.
const (
	CodeExtractionFailed Code = 61
	CodeEmbeddingFailed  Code = 62
	CodeRerankFailed     Code = 63
	CodeSynthesisFailed  Code = 67
)

// Operation log integrity (71-80).
const (
	CodeOpLogCorrupted   Code = 71
	CodeCheckpointFailed Code = 73
)

// Boundary-local failures (100+). These are raised before the engine is
// ever consulted.
const (
	CodeNullPointer   Code = 100
	CodeInvalidUTF8   Code = 101
	CodeJSONParse     Code = 102
	CodeInvalidHandle Code = 103
)

// CodeUnknown is the mandatory fallback for failures the taxonomy cannot
// classify. The boundary degrades to it rather than panic.
const CodeUnknown Code = 255

var codeNames = map[Code]string{
	CodeOk:                   "ok",
	CodeIo:                   "io",
	CodeEncode:               "encode",
	CodeDecode:               "decode",
	CodeLock:                 "lock",
	CodeLocked:               "locked",
	CodeChecksumMismatch:     "checksum_mismatch",
	CodeInvalidHeader:        "invalid_header",
	CodeEncryptedFile:        "encrypted_file",
	CodeInvalidCatalog:       "invalid_catalog",
	CodeInvalidTimeIndex:     "invalid_time_index",
	CodeLexNotEnabled:        "lex_not_enabled",
	CodeVecNotEnabled:        "vec_not_enabled",
	CodeClipNotEnabled:       "clip_not_enabled",
	CodeVecDimensionMismatch: "vec_dimension_mismatch",
	CodeCapacityExceeded:     "capacity_exceeded",
	CodeRequiresOpen:         "requires_open",
	CodeDoctorNoOp:           "doctor_no_op",
	CodeDoctor:               "doctor",
	CodeFeatureUnavailable:   "feature_unavailable",
	CodeInvalidCursor:        "invalid_cursor",
	CodeInvalidFrame:         "invalid_frame",
	CodeFrameNotFound:        "frame_not_found",
	CodeFrameNotFoundByURI:   "frame_not_found_by_uri",
	CodeInvalidQuery:         "invalid_query",
	CodeExtractionFailed:     "extraction_failed",
	CodeEmbeddingFailed:      "embedding_failed",
	CodeRerankFailed:         "rerank_failed",
	CodeSynthesisFailed:      "synthesis_failed",
	CodeOpLogCorrupted:       "op_log_corrupted",
	CodeCheckpointFailed:     "checkpoint_failed",
	CodeNullPointer:          "null_pointer",
	CodeInvalidUTF8:          "invalid_utf8",
	CodeJSONParse:            "json_parse",
	CodeInvalidHandle:        "invalid_handle",
	CodeUnknown:              "unknown",
}

// String returns the lowercase name used in logs and fault messages.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int32(c))
}
