// ABOUTME: Frame type and point lookups by id and URI
// ABOUTME: Content retrieval prefers raw payload bytes, falling back to indexed text

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Frame statuses.
const (
	StatusActive    = "active"
	StatusTombstone = "tombstone"
)

// Frame is one remembered item as stored. Tombstoned frames keep their
// row until a doctor vacuum purges them.
type Frame struct {
	ID          uint64
	Timestamp   int64
	Kind        string
	URI         string
	Title       string
	Track       string
	Status      string
	PayloadLen  uint64
	ContentHash string
	Tags        []string
	Labels      []string
	ParentID    *uint64
	ChunkIndex  *uint64
	ChunkCount  *uint64
}

const frameColumns = "id, ts, kind, uri, title, track, status, payload_len, content_hash, tags, labels, parent_id, chunk_index, chunk_count"

// FrameByID returns the frame with the given id, tombstoned or not.
// Ids that were never issued fail with KindInvalidFrame; issued but purged
// ids fail with KindFrameNotFound.
func (m *Memory) FrameByID(ctx context.Context, id uint64) (*Frame, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}
	if err := m.checkIssued(ctx, id); err != nil {
		return nil, err
	}

	row := m.db.QueryRowContext(ctx, "SELECT "+frameColumns+" FROM frames WHERE id = ?", id)
	frame, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, errf(KindFrameNotFound, "frame %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// FrameByURI returns the newest active frame carrying the given URI.
func (m *Memory) FrameByURI(ctx context.Context, uri string) (*Frame, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}

	row := m.db.QueryRowContext(ctx,
		"SELECT "+frameColumns+" FROM frames WHERE uri = ? AND status = 'active' AND parent_id IS NULL ORDER BY id DESC LIMIT 1",
		uri,
	)
	frame, err := scanFrame(row)
	if err == sql.ErrNoRows {
		return nil, errf(KindFrameNotFoundByURI, "no active frame with uri %q", uri)
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// FrameContent returns the extracted text of a frame: the payload decoded
// as UTF-8 when raw bytes are stored, otherwise the indexed search text
// (chunk frames, NoRaw frames).
func (m *Memory) FrameContent(ctx context.Context, id uint64) (string, error) {
	if err := m.requireOpen(); err != nil {
		return "", err
	}
	if err := m.checkIssued(ctx, id); err != nil {
		return "", err
	}

	var payload []byte
	var searchText string
	err := m.db.QueryRowContext(ctx, "SELECT payload, search_text FROM frames WHERE id = ?", id).
		Scan(&payload, &searchText)
	if err == sql.ErrNoRows {
		return "", errf(KindFrameNotFound, "frame %d not found", id)
	}
	if err != nil {
		return "", wrapf(KindIo, err, "reading frame %d content", id)
	}

	if payload == nil {
		return searchText, nil
	}
	if utf8.Valid(payload) {
		return string(payload), nil
	}
	return strings.ToValidUTF8(string(payload), "�"), nil
}

// FrameCount returns the total number of frames, tombstones and chunk
// children included. Zero is a legitimate count for an empty store.
func (m *Memory) FrameCount(ctx context.Context) (uint64, error) {
	if err := m.requireOpen(); err != nil {
		return 0, err
	}
	var count uint64
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frames").Scan(&count); err != nil {
		return 0, wrapf(KindIo, err, "counting frames")
	}
	return count, nil
}

// checkIssued distinguishes ids that were never issued from ids whose
// frames are gone.
func (m *Memory) checkIssued(ctx context.Context, id uint64) error {
	var nextIDStr string
	err := m.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaNextFrameID).Scan(&nextIDStr)
	if err != nil {
		return wrapf(KindIo, err, "reading frame counter")
	}
	nextID, err := strconv.ParseUint(nextIDStr, 10, 64)
	if err != nil {
		return wrapf(KindDecode, err, "parsing frame counter")
	}
	if id >= nextID {
		return errf(KindInvalidFrame, "frame id %d was never issued", id)
	}
	return nil
}

func scanFrame(row *sql.Row) (*Frame, error) {
	var frame Frame
	var kind, uri, title, track sql.NullString
	var parentID, chunkIndex, chunkCount sql.NullInt64
	var tagsJSON, labelsJSON string

	err := row.Scan(
		&frame.ID, &frame.Timestamp, &kind, &uri, &title, &track, &frame.Status,
		&frame.PayloadLen, &frame.ContentHash, &tagsJSON, &labelsJSON,
		&parentID, &chunkIndex, &chunkCount,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, wrapf(KindIo, err, "scanning frame")
	}

	frame.Kind = kind.String
	frame.URI = uri.String
	frame.Title = title.String
	frame.Track = track.String
	if err := json.Unmarshal([]byte(tagsJSON), &frame.Tags); err != nil {
		return nil, wrapf(KindDecode, err, "decoding frame tags")
	}
	if err := json.Unmarshal([]byte(labelsJSON), &frame.Labels); err != nil {
		return nil, wrapf(KindDecode, err, "decoding frame labels")
	}
	if parentID.Valid {
		v := uint64(parentID.Int64)
		frame.ParentID = &v
	}
	if chunkIndex.Valid {
		v := uint64(chunkIndex.Int64)
		frame.ChunkIndex = &v
	}
	if chunkCount.Valid {
		v := uint64(chunkCount.Int64)
		frame.ChunkCount = &v
	}
	return &frame, nil
}
