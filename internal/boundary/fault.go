// ABOUTME: Fault is the boundary error record the C error out-parameter is filled from
// ABOUTME: Engine kinds map to codes through an explicit table with an unknown fallback

package boundary

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/engramdb/engram/internal/store"
)

// Fault is one boundary failure: the stable code plus a human-readable
// message. The capi shim copies both into the caller's engram_error_t.
type Fault struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// NewFault builds a fault for conditions only the shim above can see,
// such as a NULL buffer arriving with a nonzero length.
func NewFault(code Code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

func newFault(code Code, format string, args ...any) *Fault {
	return NewFault(code, format, args...)
}

func nullPointer(param string) *Fault {
	return newFault(CodeNullPointer, "%s must not be NULL", param)
}

func invalidUTF8(param string) *Fault {
	return newFault(CodeInvalidUTF8, "%s is not valid UTF-8", param)
}

func jsonParse(param string, err error) *Fault {
	return newFault(CodeJSONParse, "parsing %s: %v", param, err)
}

func invalidHandle(handle Handle) *Fault {
	return newFault(CodeInvalidHandle, "handle %d is not open", handle)
}

// kindCodes pairs every engine error kind with its wire code. Kinds
// missing from this table degrade to CodeUnknown; the mapping test keeps
// the table exhaustive.
var kindCodes = map[store.Kind]Code{
	store.KindIo:                 CodeIo,
	store.KindEncode:             CodeEncode,
	store.KindDecode:             CodeDecode,
	store.KindLock:               CodeLock,
	store.KindLocked:             CodeLocked,
	store.KindChecksumMismatch:   CodeChecksumMismatch,
	store.KindInvalidHeader:      CodeInvalidHeader,
	store.KindInvalidCatalog:     CodeInvalidCatalog,
	store.KindInvalidTimeIndex:   CodeInvalidTimeIndex,
	store.KindLexNotEnabled:      CodeLexNotEnabled,
	store.KindVecNotEnabled:      CodeVecNotEnabled,
	store.KindCapacityExceeded:   CodeCapacityExceeded,
	store.KindRequiresOpen:       CodeRequiresOpen,
	store.KindDoctorNoOp:         CodeDoctorNoOp,
	store.KindDoctor:             CodeDoctor,
	store.KindInvalidCursor:      CodeInvalidCursor,
	store.KindInvalidFrame:       CodeInvalidFrame,
	store.KindFrameNotFound:      CodeFrameNotFound,
	store.KindFrameNotFoundByURI: CodeFrameNotFoundByURI,
	store.KindInvalidQuery:       CodeInvalidQuery,
	store.KindExtractionFailed:   CodeExtractionFailed,
	store.KindSynthesisFailed:    CodeSynthesisFailed,
	store.KindOpLogCorrupted:     CodeOpLogCorrupted,
	store.KindCheckpointFailed:   CodeCheckpointFailed,
}

// faultFrom classifies an engine error into a Fault. Non-engine errors
// and unmapped kinds come back as CodeUnknown rather than escaping as a
// panic or a zero code.
func faultFrom(err error) *Fault {
	if err == nil {
		return nil
	}
	var engineErr *store.Error
	if errors.As(err, &engineErr) {
		if code, ok := kindCodes[engineErr.Kind]; ok {
			return &Fault{Code: code, Message: err.Error()}
		}
	}
	slog.Default().With("component", "boundary").Warn("unclassified engine error", "error", err)
	return &Fault{Code: CodeUnknown, Message: err.Error()}
}
