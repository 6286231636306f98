// ABOUTME: Exported lifecycle functions: create, open, close
// ABOUTME: Handles come from internal/boundary; 0 is the failure sentinel

//go:build cgo

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../include
#include "engram.h"
*/
import "C"

import "github.com/engramdb/engram/internal/boundary"

//export engram_create
func engram_create(path *C.char, err *C.engram_error_t) C.engram_handle_t {
	writeOK(err)
	handle, fault := boundary.Create(goBytes(path))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.engram_handle_t(handle)
}

//export engram_open
func engram_open(path *C.char, err *C.engram_error_t) C.engram_handle_t {
	writeOK(err)
	handle, fault := boundary.Open(goBytes(path))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.engram_handle_t(handle)
}

//export engram_close
func engram_close(handle C.engram_handle_t, err *C.engram_error_t) {
	writeOK(err)
	if fault := boundary.Close(boundary.Handle(handle)); fault != nil {
		writeFault(err, fault)
	}
}
