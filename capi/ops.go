// ABOUTME: Exported mutation and query functions over an open handle
// ABOUTME: JSON requests and responses pass through internal/boundary untouched

//go:build cgo

package main

/*
#cgo CFLAGS: -I${SRCDIR}/../include
#include "engram.h"
*/
import "C"

import "github.com/engramdb/engram/internal/boundary"

//export engram_put
func engram_put(handle C.engram_handle_t, data *C.uint8_t, length C.size_t, err *C.engram_error_t) C.uint64_t {
	writeOK(err)
	buf, ok := requireBuffer(data, length, err)
	if !ok {
		return 0
	}
	id, fault := boundary.Put(boundary.Handle(handle), buf)
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.uint64_t(id)
}

//export engram_put_with_options
func engram_put_with_options(handle C.engram_handle_t, data *C.uint8_t, length C.size_t, optionsJSON *C.char, err *C.engram_error_t) C.uint64_t {
	writeOK(err)
	buf, ok := requireBuffer(data, length, err)
	if !ok {
		return 0
	}
	id, fault := boundary.PutWithOptions(boundary.Handle(handle), buf, goBytes(optionsJSON))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.uint64_t(id)
}

//export engram_commit
func engram_commit(handle C.engram_handle_t, err *C.engram_error_t) C.int32_t {
	writeOK(err)
	if fault := boundary.Commit(boundary.Handle(handle)); fault != nil {
		writeFault(err, fault)
		return 0
	}
	return 1
}

//export engram_delete_frame
func engram_delete_frame(handle C.engram_handle_t, frameID C.uint64_t, err *C.engram_error_t) C.uint64_t {
	writeOK(err)
	seq, fault := boundary.DeleteFrame(boundary.Handle(handle), uint64(frameID))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.uint64_t(seq)
}

//export engram_frame_by_id
func engram_frame_by_id(handle C.engram_handle_t, frameID C.uint64_t, err *C.engram_error_t) *C.char {
	writeOK(err)
	doc, fault := boundary.FrameByID(boundary.Handle(handle), uint64(frameID))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(doc)
}

//export engram_frame_by_uri
func engram_frame_by_uri(handle C.engram_handle_t, uri *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	doc, fault := boundary.FrameByURI(boundary.Handle(handle), goBytes(uri))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(doc)
}

//export engram_frame_content
func engram_frame_content(handle C.engram_handle_t, frameID C.uint64_t, err *C.engram_error_t) *C.char {
	writeOK(err)
	text, fault := boundary.FrameContent(boundary.Handle(handle), uint64(frameID))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(text)
}

//export engram_frame_count
func engram_frame_count(handle C.engram_handle_t, err *C.engram_error_t) C.uint64_t {
	writeOK(err)
	n, fault := boundary.FrameCount(boundary.Handle(handle))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	return C.uint64_t(n)
}

//export engram_search
func engram_search(handle C.engram_handle_t, requestJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	doc, fault := boundary.Search(boundary.Handle(handle), goBytes(requestJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(doc)
}

//export engram_ask
func engram_ask(handle C.engram_handle_t, requestJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	doc, fault := boundary.Ask(boundary.Handle(handle), goBytes(requestJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(doc)
}

//export engram_timeline
func engram_timeline(handle C.engram_handle_t, queryJSON *C.char, err *C.engram_error_t) *C.char {
	writeOK(err)
	doc, fault := boundary.Timeline(boundary.Handle(handle), goBytes(queryJSON))
	if fault != nil {
		writeFault(err, fault)
		return nil
	}
	return C.CString(doc)
}

//export engram_stats
func engram_stats(handle C.engram_handle_t, out *C.engram_stats_t, err *C.engram_error_t) C.int32_t {
	writeOK(err)
	if out == nil {
		writeFault(err, boundary.NewFault(boundary.CodeNullPointer, "out must not be NULL"))
		return 0
	}
	snap, fault := boundary.Stats(boundary.Handle(handle))
	if fault != nil {
		writeFault(err, fault)
		return 0
	}
	out.frame_count = C.uint64_t(snap.FrameCount)
	out.active_frame_count = C.uint64_t(snap.ActiveFrameCount)
	out.size_bytes = C.uint64_t(snap.SizeBytes)
	out.payload_bytes = C.uint64_t(snap.PayloadBytes)
	out.logical_bytes = C.uint64_t(snap.LogicalBytes)
	out.capacity_bytes = C.uint64_t(snap.CapacityBytes)
	out.has_lex_index = boolByte(snap.HasLexIndex)
	out.has_vec_index = boolByte(snap.HasVecIndex)
	out.has_clip_index = boolByte(snap.HasClipIndex)
	out.has_time_index = boolByte(snap.HasTimeIndex)
	out.reserved = [4]C.uint8_t{}
	out.wal_bytes = C.uint64_t(snap.WalBytes)
	out.lex_index_bytes = C.uint64_t(snap.LexIndexBytes)
	out.time_index_bytes = C.uint64_t(snap.TimeIndexBytes)
	out.vec_index_bytes = C.uint64_t(snap.VecIndexBytes)
	out.vector_count = C.uint64_t(snap.VectorCount)
	out.clip_image_count = C.uint64_t(snap.ClipImageCount)
	out.overhead_percent = C.double(snap.OverheadPercent)
	out.savings_percent = C.double(snap.SavingsPercent)
	out.storage_utilisation_percent = C.double(snap.StorageUtilisationPercent)
	out.remaining_capacity_bytes = C.uint64_t(snap.RemainingCapacityBytes)
	return 1
}
