// ABOUTME: Tests for engine-error classification into wire faults
// ABOUTME: Keeps the kind table exhaustive and the unknown fallback honest

package boundary

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdb/engram/internal/store"
)

func TestFaultFrom_EveryEngineKind(t *testing.T) {
	expected := map[store.Kind]Code{
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
	require.Len(t, kindCodes, len(expected), "kind table drifted from the expected mapping")

	for kind, code := range expected {
		fault := faultFrom(&store.Error{Kind: kind, Msg: "boom"})
		require.NotNil(t, fault)
		assert.Equal(t, code, fault.Code, "kind %s", kind)
		assert.Contains(t, fault.Message, "boom")
	}
}

func TestFaultFrom_WrappedEngineError(t *testing.T) {
	inner := &store.Error{Kind: store.KindInvalidQuery, Msg: "query must not be blank"}
	fault := faultFrom(fmt.Errorf("running search: %w", inner))

	require.NotNil(t, fault)
	assert.Equal(t, CodeInvalidQuery, fault.Code)
	assert.Contains(t, fault.Message, "running search")
}

func TestFaultFrom_PlainError(t *testing.T) {
	fault := faultFrom(errors.New("something unforeseen"))
	require.NotNil(t, fault)
	assert.Equal(t, CodeUnknown, fault.Code)
	assert.Equal(t, "something unforeseen", fault.Message)
}

func TestFaultFrom_UnmappedKind(t *testing.T) {
	fault := faultFrom(&store.Error{Kind: store.Kind("FUTURE_FAILURE"), Msg: "new"})
	require.NotNil(t, fault)
	assert.Equal(t, CodeUnknown, fault.Code)
}

func TestFaultFrom_Nil(t *testing.T) {
	assert.Nil(t, faultFrom(nil))
}

func TestFault_Error(t *testing.T) {
	fault := &Fault{Code: CodeNullPointer, Message: "path must not be NULL"}
	assert.Equal(t, "null_pointer: path must not be NULL", fault.Error())
}
