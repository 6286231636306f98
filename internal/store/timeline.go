// ABOUTME: Chronological view over active frames with chunk children folded in
// ABOUTME: A zero limit means unlimited, preserved from the wire contract

package store

import (
	"context"
	"database/sql"
	"strings"
)

// previewChars caps timeline previews.
const previewChars = 120

// TimelineQuery selects a time window of entries.
type TimelineQuery struct {
	// Limit caps returned entries; zero means unlimited.
	Limit uint64

	// Since and Until bound timestamps, inclusive.
	Since *int64
	Until *int64

	// Reverse returns newest first.
	Reverse bool
}

// TimelineEntry is one frame on the timeline. Chunked documents appear
// once, with their chunk frame ids in ChildFrames.
type TimelineEntry struct {
	FrameID     uint64
	Timestamp   int64
	Preview     string
	URI         string
	ChildFrames []uint64
}

// Timeline lists active top-level frames in timestamp order (id as
// tiebreak), oldest first unless Reverse.
func (m *Memory) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineEntry, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}

	conds := []string{"status = 'active'", "parent_id IS NULL"}
	var args []any
	if q.Since != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		conds = append(conds, "ts <= ?")
		args = append(args, *q.Until)
	}

	order := "ORDER BY ts ASC, id ASC"
	if q.Reverse {
		order = "ORDER BY ts DESC, id DESC"
	}
	query := "SELECT id, ts, uri, search_text FROM frames WHERE " +
		strings.Join(conds, " AND ") + " " + order
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapf(KindIo, err, "reading timeline")
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var entry TimelineEntry
		var uri sql.NullString
		var searchText string
		if err := rows.Scan(&entry.FrameID, &entry.Timestamp, &uri, &searchText); err != nil {
			return nil, wrapf(KindIo, err, "scanning timeline entry")
		}
		entry.URI = uri.String
		entry.Preview = previewText(searchText, previewChars)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapf(KindIo, err, "reading timeline")
	}

	if err := m.attachChildren(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// attachChildren fills ChildFrames for chunked entries in one query.
func (m *Memory) attachChildren(ctx context.Context, entries []TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	index := make(map[uint64]int, len(entries))
	placeholders := make([]string, len(entries))
	args := make([]any, len(entries))
	for i, entry := range entries {
		index[entry.FrameID] = i
		placeholders[i] = "?"
		args[i] = entry.FrameID
	}

	query := "SELECT parent_id, id FROM frames WHERE parent_id IN (" +
		strings.Join(placeholders, ", ") + ") AND status = 'active' ORDER BY parent_id, chunk_index"
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapf(KindIo, err, "reading chunk children")
	}
	defer rows.Close()

	for rows.Next() {
		var parentID, childID uint64
		if err := rows.Scan(&parentID, &childID); err != nil {
			return wrapf(KindIo, err, "scanning chunk child")
		}
		if i, ok := index[parentID]; ok {
			entries[i].ChildFrames = append(entries[i].ChildFrames, childID)
		}
	}
	if err := rows.Err(); err != nil {
		return wrapf(KindIo, err, "reading chunk children")
	}
	return nil
}
