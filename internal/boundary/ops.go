// ABOUTME: Per-operation adapters pairing the C surface with the engine
// ABOUTME: Each resolves the handle, validates inbound bytes, and returns wire JSON

package boundary

import (
	"context"
	"fmt"

	"github.com/engramdb/engram/internal/store"
)

// Put ingests data with default options and returns the new frame id.
// Ids start at 0, so callers must check the error code rather than the
// value. nil data is an empty buffer.
func Put(handle Handle, data []byte) (uint64, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return 0, fault
	}
	id, err := m.Put(context.Background(), data)
	if err != nil {
		return 0, faultFrom(err)
	}
	return id, nil
}

// PutWithOptions ingests data with a JSON options document. nil options
// mean defaults.
func PutWithOptions(handle Handle, data, optionsJSON []byte) (uint64, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return 0, fault
	}
	var opts putOptionsRequest
	if optionsJSON != nil {
		if fault := decodeJSON(optionsJSON, "options_json", &opts); fault != nil {
			return 0, fault
		}
	}
	id, err := m.PutWithOptions(context.Background(), data, opts.engine())
	if err != nil {
		return 0, faultFrom(err)
	}
	return id, nil
}

// Commit flushes the WAL durably and records the committed op sequence.
func Commit(handle Handle) *Fault {
	m, fault := resolve(handle)
	if fault != nil {
		return fault
	}
	if err := m.Commit(context.Background()); err != nil {
		return faultFrom(err)
	}
	return nil
}

// DeleteFrame tombstones a frame and returns the op-log sequence of the
// delete, always >= 1.
func DeleteFrame(handle Handle, id uint64) (uint64, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return 0, fault
	}
	seq, err := m.DeleteFrame(context.Background(), id)
	if err != nil {
		return 0, faultFrom(err)
	}
	return seq, nil
}

// FrameByID returns the frame record JSON for id, tombstoned or not.
func FrameByID(handle Handle, id uint64) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	frame, err := m.FrameByID(context.Background(), id)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(wireFrame(frame))
}

// FrameByURI returns the frame record JSON of the newest active frame
// with the given URI.
func FrameByURI(handle Handle, uri []byte) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	u, fault := requireText(uri, "uri")
	if fault != nil {
		return "", fault
	}
	frame, err := m.FrameByURI(context.Background(), u)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(wireFrame(frame))
}

// FrameContent returns the extracted text of a frame. Content holding an
// embedded NUL cannot cross the C string boundary and fails closed.
func FrameContent(handle Handle, id uint64) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	content, err := m.FrameContent(context.Background(), id)
	if err != nil {
		return "", faultFrom(err)
	}
	return outboundText(content, fmt.Sprintf("content of frame %d", id))
}

// FrameCount returns the total number of frames, tombstones and chunk
// children included. Zero is a legitimate count.
func FrameCount(handle Handle) (uint64, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return 0, fault
	}
	count, err := m.FrameCount(context.Background())
	if err != nil {
		return 0, faultFrom(err)
	}
	return count, nil
}

// Search runs a lexical query from a JSON request and returns the
// response JSON. The request is mandatory because it carries the query.
func Search(handle Handle, requestJSON []byte) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	req := defaultSearchRequest()
	if fault := requireJSON(requestJSON, "request_json", &req); fault != nil {
		return "", fault
	}
	resp, err := m.Search(context.Background(), req.engine())
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(wireSearchResponse(resp, true))
}

// Ask retrieves context for a question and returns the answer envelope
// JSON. No synthesizer runs on this surface, so the answer stays null
// and the response reports context_only true.
func Ask(handle Handle, requestJSON []byte) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	req := defaultAskRequest()
	if fault := requireJSON(requestJSON, "request_json", &req); fault != nil {
		return "", fault
	}
	resp, err := m.Ask(context.Background(), req.engine(), nil)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(wireAskResponse(resp))
}

// Timeline lists active frames in time order as response JSON. nil query
// means defaults; a zero limit means unlimited.
func Timeline(handle Handle, queryJSON []byte) (string, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return "", fault
	}
	var query timelineQuery
	if queryJSON != nil {
		if fault := decodeJSON(queryJSON, "query_json", &query); fault != nil {
			return "", fault
		}
	}
	entries, err := m.Timeline(context.Background(), query.engine())
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(wireTimeline(entries))
}

// Stats gathers a snapshot for the caller-owned C stats struct. The capi
// shim copies the fields; everything else about the snapshot is decided
// by the engine.
func Stats(handle Handle) (*store.Stats, *Fault) {
	m, fault := resolve(handle)
	if fault != nil {
		return nil, fault
	}
	stats, err := m.Stats(context.Background())
	if err != nil {
		return nil, faultFrom(err)
	}
	return stats, nil
}
