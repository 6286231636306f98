// ABOUTME: Exported maintenance functions: verify, doctor, plan, apply
// ABOUTME: Path-static operations; the store must not be open elsewhere

//go:build cgo

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../include
#include "engram.h"
*/
import "C"

import "github.com/engramdb/engram/internal/boundary"

//export engram_verify
func engram_verify(path *C.char, deep C.int32_t, err *C.engram_error_t) *C.char {
	writeOK(err)
	report, fault := boundary.Verify(goBytes(path), deep != 0)
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(report)
}

//export engram_doctor
func engram_doctor(path *C.char, optionsJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	report, fault := boundary.Doctor(goBytes(path), goBytes(optionsJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(report)
}

//export engram_doctor_plan
func engram_doctor_plan(path *C.char, optionsJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	plan, fault := boundary.DoctorPlan(goBytes(path), goBytes(optionsJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(plan)
}

//export engram_doctor_apply
func engram_doctor_apply(path *C.char, planJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	report, fault := boundary.DoctorApply(goBytes(path), goBytes(planJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(report)
}
