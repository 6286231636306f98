// ABOUTME: cgo plumbing shared by the exports: buffer, string, and error conversion
// ABOUTME: Every export resets the caller's error record before doing anything

//go:build cgo

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../include
#include <stdlib.h>
#include "engram.h"
*/
import "C"

import (
	"unsafe"

	"github.com/engramdb/engram/internal/boundary"
)

// cVersion backs engram_version. Allocated once; callers never free it.
var cVersion = C.CString(boundary.Version())

//export engram_version
func engram_version() *C.char { return cVersion }

//export engram_features
func engram_features() C.uint32_t { return C.uint32_t(boundary.Features()) }

//export engram_string_free
func engram_string_free(s *C.char) {
	if s == nil {
		return
	}
	C.free(unsafe.Pointer(s))
}

//export engram_error_free
func engram_error_free(err *C.engram_error_t) {
	if err == nil || err.message == nil {
		return
	}
	C.free(unsafe.Pointer(err.message))
	err.message = nil
}

// writeOK resets the caller's error record so a reused record never
// carries a stale failure. NULL records are tolerated everywhere.
func writeOK(err *C.engram_error_t) {
	if err == nil {
		return
	}
	err.code = C.int32_t(boundary.CodeOk)
	err.message = nil
}

// writeFault copies a fault into the caller's record. The message is C
// malloc'd; engram_error_free releases it.
func writeFault(err *C.engram_error_t, fault *boundary.Fault) {
	if err == nil {
		return
	}
	err.code = C.int32_t(fault.Code)
	err.message = C.CString(fault.Message)
}

// goBytes copies a NUL-terminated C string, keeping NULL as nil so the
// boundary can tell an absent argument from an empty one.
func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return []byte(C.GoString(s))
}

// requireBuffer borrows the caller's raw buffer for the duration of one
// call. NULL with length 0 is an empty buffer; NULL with a nonzero
// length fills err and reports false.
func requireBuffer(data *C.uint8_t, length C.size_t, err *C.engram_error_t) ([]byte, bool) {
	if data == nil {
		if length > 0 {
			writeFault(err, boundary.NewFault(boundary.CodeNullPointer,
				"data must not be NULL when len is %d", uint64(length)))
			return nil, false
		}
		return nil, true
	}
	if length == 0 {
		return nil, true
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), int(length)), true
}

func boolByte(b bool) C.uint8_t {
	if b {
		return 1
	}
	return 0
}
