// ABOUTME: Mutation path: frame ingestion with extraction/chunking, deletes, commits
// ABOUTME: Every mutation appends to the op log inside one transaction

package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// PutOptions control ingestion of one content buffer. The zero value
// ingests with extraction defaults and no metadata.
type PutOptions struct {
	URI   string
	Title string
	Track string
	Kind  string

	// Timestamp is the frame time in unix seconds; zero means now.
	Timestamp int64

	Tags   map[string]string
	Labels []string

	// SearchText overrides extracted text for indexing. Content retrieval
	// still returns the payload.
	SearchText string

	// AutoTag derives labels from recurring content words.
	AutoTag bool

	// ExtractDates records ISO dates found in the content as date= tags.
	ExtractDates bool

	// ExtractTriplets records naive "X is Y" relations as triplet= tags.
	ExtractTriplets bool

	// NoRaw drops the payload bytes, keeping only hash and search text.
	NoRaw bool

	// Dedup returns the existing frame id when identical content is
	// already stored, instead of writing a new frame.
	Dedup bool
}

// Put ingests data with default options and returns the new frame id.
// Frame ids start at 0; callers must not treat 0 as a failure marker.
func (m *Memory) Put(ctx context.Context, data []byte) (uint64, error) {
	return m.PutWithOptions(ctx, data, PutOptions{})
}

// PutWithOptions ingests data and returns the frame id of the stored (or,
// with Dedup, the pre-existing) frame. Text longer than the chunking
// threshold is split into child frames; the returned id is the parent's.
func (m *Memory) PutWithOptions(ctx context.Context, data []byte, opts PutOptions) (uint64, error) {
	if err := m.requireOpen(); err != nil {
		return 0, err
	}

	sum := blake2b.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if opts.Dedup {
		var existing uint64
		err := m.db.QueryRowContext(ctx,
			"SELECT id FROM frames WHERE content_hash = ? AND status = 'active' AND parent_id IS NULL LIMIT 1",
			hash,
		).Scan(&existing)
		if err == nil {
			m.logger.Debug("dedup hit", "id", existing, "hash", hash[:12])
			return existing, nil
		}
		if err != sql.ErrNoRows {
			return 0, wrapf(KindIo, err, "checking for duplicate content")
		}
	}

	// A dedup hit writes nothing, so capacity is checked after it.
	if m.capacity > 0 {
		used := m.fileBytes() + m.walBytes()
		if used+uint64(len(data)) > m.capacity {
			return 0, errf(KindCapacityExceeded, "store capacity %d bytes would be exceeded", m.capacity)
		}
	}

	searchText := opts.SearchText
	if searchText == "" {
		extracted, err := extractText(data, opts.Kind, opts.URI)
		if err != nil {
			return 0, err
		}
		searchText = extracted
	}

	tags := flattenTags(opts.Tags)
	if opts.ExtractDates {
		for _, date := range extractDates(searchText, 8) {
			tags = append(tags, "date="+date)
		}
	}
	if opts.ExtractTriplets {
		for _, triplet := range extractTriplets(searchText, 8) {
			tags = append(tags, "triplet="+triplet)
		}
	}

	labels := slices.Clone(opts.Labels)
	if opts.AutoTag {
		for _, label := range autoLabels(searchText, 3) {
			if !slices.Contains(labels, label) {
				labels = append(labels, label)
			}
		}
	}

	ts := opts.Timestamp
	if ts == 0 {
		ts = m.clock().Unix()
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, wrapf(KindEncode, err, "encoding tags")
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return 0, wrapf(KindEncode, err, "encoding labels")
	}

	chunks := chunkText(searchText, m.chunkChars)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapf(KindIo, err, "starting transaction")
	}
	defer tx.Rollback()

	var nextIDStr string
	if err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaNextFrameID).Scan(&nextIDStr); err != nil {
		return 0, wrapf(KindIo, err, "reading frame counter")
	}
	parentID, err := strconv.ParseUint(nextIDStr, 10, 64)
	if err != nil {
		return 0, wrapf(KindDecode, err, "parsing frame counter")
	}

	var payload any
	if !opts.NoRaw {
		payload = data
	}
	chunked := len(chunks) > 1
	indexed := 1
	var chunkCount any
	if chunked {
		// Chunked parents stay out of the lexical index so hits land on
		// the chunk frames.
		indexed = 0
		chunkCount = len(chunks)
	}

	const insertFrame = `
		INSERT INTO frames (id, ts, kind, uri, title, track, status, payload, payload_len,
		                    content_hash, search_text, tags, labels, parent_id, chunk_index, chunk_count, indexed)
		VALUES (?, ?, ?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertFrame,
		parentID, ts, nullable(opts.Kind), nullable(opts.URI), nullable(opts.Title), nullable(opts.Track),
		payload, len(data), hash, searchText, string(tagsJSON), string(labelsJSON),
		nil, nil, chunkCount, indexed,
	)
	if err != nil {
		return 0, wrapf(KindEncode, err, "inserting frame")
	}

	if chunked {
		for i, chunk := range chunks {
			childID := parentID + 1 + uint64(i)
			chunkSum := blake2b.Sum256([]byte(chunk))
			_, err = tx.ExecContext(ctx, insertFrame,
				childID, ts, nullable(opts.Kind), nil, nullable(opts.Title), nullable(opts.Track),
				nil, len(chunk), hex.EncodeToString(chunkSum[:]), chunk, string(tagsJSON), string(labelsJSON),
				parentID, i, len(chunks), 1,
			)
			if err != nil {
				return 0, wrapf(KindEncode, err, "inserting chunk %d", i)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO ops (op, frame_id, at) VALUES ('put', ?, ?)", parentID, m.clock().Unix(),
	); err != nil {
		return 0, wrapf(KindIo, err, "recording put op")
	}

	issued := parentID + 1
	if chunked {
		issued += uint64(len(chunks))
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE meta SET value = ? WHERE key = ?", strconv.FormatUint(issued, 10), metaNextFrameID,
	); err != nil {
		return 0, wrapf(KindIo, err, "advancing frame counter")
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapf(KindIo, err, "committing put")
	}

	m.logger.Debug("frame stored", "id", parentID, "bytes", len(data), "chunks", len(chunks))
	return parentID, nil
}

// DeleteFrame tombstones a frame (and its chunk children) and returns the
// op-log sequence of the delete, always >= 1. Missing or already deleted
// frames fail with KindFrameNotFound.
func (m *Memory) DeleteFrame(ctx context.Context, id uint64) (uint64, error) {
	if err := m.requireOpen(); err != nil {
		return 0, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapf(KindIo, err, "starting transaction")
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM frames WHERE id = ?", id).Scan(&status)
	if err == sql.ErrNoRows {
		return 0, errf(KindFrameNotFound, "frame %d not found", id)
	}
	if err != nil {
		return 0, wrapf(KindIo, err, "reading frame %d", id)
	}
	if status != "active" {
		return 0, errf(KindFrameNotFound, "frame %d is already deleted", id)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE frames SET status = 'tombstone' WHERE id = ?", id); err != nil {
		return 0, wrapf(KindIo, err, "tombstoning frame %d", id)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE frames SET status = 'tombstone' WHERE parent_id = ? AND status = 'active'", id,
	); err != nil {
		return 0, wrapf(KindIo, err, "tombstoning chunks of frame %d", id)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO ops (op, frame_id, at) VALUES ('delete', ?, ?)", id, m.clock().Unix(),
	)
	if err != nil {
		return 0, wrapf(KindIo, err, "recording delete op")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, wrapf(KindIo, err, "reading delete sequence")
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapf(KindIo, err, "committing delete")
	}

	m.logger.Debug("frame deleted", "id", id, "seq", seq)
	return uint64(seq), nil
}

// Commit flushes the WAL into the main file and records the durable op
// sequence. Readers of the file see all prior mutations afterwards.
func (m *Memory) Commit(ctx context.Context) error {
	if err := m.requireOpen(); err != nil {
		return err
	}

	var busy, logPages, checkpointed int
	err := m.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logPages, &checkpointed)
	if err != nil {
		return wrapf(KindCheckpointFailed, err, "checkpointing wal")
	}
	if busy != 0 {
		return errf(KindCheckpointFailed, "wal checkpoint reported busy")
	}

	var maxSeq int64
	if err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM ops").Scan(&maxSeq); err != nil {
		return wrapf(KindIo, err, "reading op log head")
	}
	if err := m.metaSet(metaCommittedSeq, strconv.FormatInt(maxSeq, 10)); err != nil {
		return err
	}

	m.logger.Debug("committed", "seq", maxSeq)
	return nil
}

// flattenTags turns the tag map into sorted "key=value" strings.
func flattenTags(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	flat := make([]string, 0, len(keys))
	for _, key := range keys {
		flat = append(flat, key+"="+tags[key])
	}
	return flat
}

// chunkText splits content into pieces of at most maxChars runes, packing
// whole paragraphs where possible. Content within the limit comes back as
// a single piece.
func chunkText(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkChars
	}
	if len([]rune(content)) <= maxChars {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, paragraph := range strings.SplitAfter(content, "\n\n") {
		runes := []rune(paragraph)
		if len(runes) > maxChars {
			flush()
			for start := 0; start < len(runes); start += maxChars {
				end := min(start+maxChars, len(runes))
				chunks = append(chunks, string(runes[start:end]))
			}
			continue
		}
		if currentLen+len(runes) > maxChars {
			flush()
		}
		current.WriteString(paragraph)
		currentLen += len(runes)
	}
	flush()
	return chunks
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
