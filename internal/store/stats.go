// ABOUTME: Store statistics: frame counts, per-subsystem byte sizes, derived ratios
// ABOUTME: Sizes are measured from the file and schema, not estimated from history

package store

import (
	"context"
)

// Stats is a point-in-time snapshot of store shape and size. Vector and
// visual fields stay zero in this build.
type Stats struct {
	FrameCount       uint64
	ActiveFrameCount uint64

	// SizeBytes is the main file size; WalBytes the sidecar WAL.
	SizeBytes    uint64
	PayloadBytes uint64
	LogicalBytes uint64

	CapacityBytes uint64
	WalBytes      uint64

	// LexIndexBytes is the logical size of indexed text; TimeIndexBytes
	// counts 16 bytes per frame for the (ts, id) pairs.
	LexIndexBytes  uint64
	TimeIndexBytes uint64
	VecIndexBytes  uint64

	VectorCount    uint64
	ClipImageCount uint64

	HasLexIndex  bool
	HasVecIndex  bool
	HasClipIndex bool
	HasTimeIndex bool

	// OverheadPercent relates stored size to caller payload bytes;
	// SavingsPercent is its complement, floored at zero.
	OverheadPercent           float64
	SavingsPercent            float64
	StorageUtilisationPercent float64
	RemainingCapacityBytes    uint64
}

// Stats gathers a snapshot. Safe on an empty store.
func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	if err := m.requireOpen(); err != nil {
		return nil, err
	}

	var s Stats

	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frames").Scan(&s.FrameCount); err != nil {
		return nil, wrapf(KindIo, err, "counting frames")
	}
	if err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM frames WHERE status = 'active'",
	).Scan(&s.ActiveFrameCount); err != nil {
		return nil, wrapf(KindIo, err, "counting active frames")
	}
	if err := m.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(payload_len), 0) FROM frames WHERE status = 'active' AND parent_id IS NULL",
	).Scan(&s.PayloadBytes); err != nil {
		return nil, wrapf(KindIo, err, "summing payload bytes")
	}
	if err := m.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(LENGTH(search_text) + LENGTH(COALESCE(title, ''))), 0) FROM frames WHERE indexed = 1 AND status = 'active'",
	).Scan(&s.LexIndexBytes); err != nil {
		return nil, wrapf(KindIo, err, "summing indexed text bytes")
	}

	var pageCount, pageSize uint64
	if err := m.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, wrapf(KindIo, err, "reading page count")
	}
	if err := m.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, wrapf(KindIo, err, "reading page size")
	}
	s.LogicalBytes = pageCount * pageSize

	s.SizeBytes = m.fileBytes()
	s.WalBytes = m.walBytes()
	s.CapacityBytes = m.capacity
	s.TimeIndexBytes = 16 * s.FrameCount

	s.HasLexIndex = m.schemaObjectExists(ctx, "frames_fts")
	s.HasTimeIndex = m.schemaObjectExists(ctx, "idx_frames_ts")

	if s.PayloadBytes > 0 {
		s.OverheadPercent = float64(s.LogicalBytes) / float64(s.PayloadBytes) * 100
		s.SavingsPercent = 100 - s.OverheadPercent
		if s.SavingsPercent < 0 {
			s.SavingsPercent = 0
		}
	}
	if s.CapacityBytes > 0 {
		s.StorageUtilisationPercent = float64(s.SizeBytes) / float64(s.CapacityBytes) * 100
		if s.SizeBytes < s.CapacityBytes {
			s.RemainingCapacityBytes = s.CapacityBytes - s.SizeBytes
		}
	}

	return &s, nil
}

func (m *Memory) schemaObjectExists(ctx context.Context, name string) bool {
	var n int
	if err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name,
	).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func (m *Memory) fileBytes() uint64 { return statBytes(m.path) }

func (m *Memory) walBytes() uint64 { return statBytes(m.path + "-wal") }
