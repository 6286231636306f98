// ABOUTME: Memory lifecycle for engram stores using modernc.org/sqlite
// ABOUTME: Create/Open validate and bootstrap the single-file schema, Close releases the lock

package store

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Version is the engine version reported over every surface.
const Version = "0.1.0"

// Feature bits reported by Features. The lexical index is compiled into
// every build; vector and visual search are reserved.
const (
	FeatureLex  uint32 = 1 << 0
	FeatureVec  uint32 = 1 << 1
	FeatureClip uint32 = 1 << 2
)

// Features returns the capability bitmask of this engine build.
func Features() uint32 { return FeatureLex }

const (
	// sqliteMagic is the 16-byte header every SQLite database starts with.
	sqliteMagic = "SQLite format 3\x00"

	// appID marks a database as an engram store ("ENGR").
	appID = 0x454E4752

	// formatVersion is the schema generation written to user_version.
	// Opening a store with a newer version fails with KindDecode.
	formatVersion = 1

	// DefaultChunkChars is the extracted-text length above which content is
	// split into child chunk frames.
	DefaultChunkChars = 4096
)

const schema = `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frames (
		id           INTEGER PRIMARY KEY,
		ts           INTEGER NOT NULL,
		kind         TEXT,
		uri          TEXT,
		title        TEXT,
		track        TEXT,
		status       TEXT NOT NULL DEFAULT 'active',
		payload      BLOB,
		payload_len  INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL,
		search_text  TEXT NOT NULL DEFAULT '',
		tags         TEXT NOT NULL DEFAULT '[]',
		labels       TEXT NOT NULL DEFAULT '[]',
		parent_id    INTEGER,
		chunk_index  INTEGER,
		chunk_count  INTEGER,
		indexed      INTEGER NOT NULL DEFAULT 1,

		CHECK (status IN ('active', 'tombstone'))
	);

	CREATE INDEX IF NOT EXISTS idx_frames_ts ON frames(ts, id);
	CREATE INDEX IF NOT EXISTS idx_frames_uri ON frames(uri) WHERE uri IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_frames_hash ON frames(content_hash);
	CREATE INDEX IF NOT EXISTS idx_frames_parent ON frames(parent_id) WHERE parent_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS ops (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		op       TEXT NOT NULL,
		frame_id INTEGER,
		at       INTEGER NOT NULL,

		CHECK (op IN ('put', 'delete'))
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS frames_fts USING fts5(
		search_text,
		title,
		content=frames,
		content_rowid=id
	);

	CREATE TRIGGER IF NOT EXISTS frames_ai AFTER INSERT ON frames
	WHEN new.indexed = 1 AND new.status = 'active'
	BEGIN
		INSERT INTO frames_fts(rowid, search_text, title)
		VALUES (new.id, new.search_text, new.title);
	END;

	CREATE TRIGGER IF NOT EXISTS frames_ad AFTER DELETE ON frames
	WHEN old.indexed = 1 AND old.status = 'active'
	BEGIN
		INSERT INTO frames_fts(frames_fts, rowid, search_text, title)
		VALUES ('delete', old.id, old.search_text, old.title);
	END;

	CREATE TRIGGER IF NOT EXISTS frames_au_deindex AFTER UPDATE ON frames
	WHEN old.indexed = 1 AND old.status = 'active'
	BEGIN
		INSERT INTO frames_fts(frames_fts, rowid, search_text, title)
		VALUES ('delete', old.id, old.search_text, old.title);
	END;

	CREATE TRIGGER IF NOT EXISTS frames_au_reindex AFTER UPDATE ON frames
	WHEN new.indexed = 1 AND new.status = 'active'
	BEGIN
		INSERT INTO frames_fts(rowid, search_text, title)
		VALUES (new.id, new.search_text, new.title);
	END;
`

// catalogObjects are the schema objects Open requires before it trusts a
// file. Verify checks the same list.
var catalogObjects = []string{"meta", "frames", "ops", "frames_fts", "idx_frames_ts"}

// Meta keys.
const (
	metaStoreUID     = "store_uid"
	metaCreatedUnix  = "created_unix"
	metaNextFrameID  = "next_frame_id"
	metaCommittedSeq = "committed_seq"
	metaCapacity     = "capacity_bytes"
	metaChunkChars   = "chunk_chars"
)

// Memory is one open engram store. It owns the database connection and the
// sidecar lock until Close. A Memory is not safe for concurrent use.
type Memory struct {
	path   string
	db     *sql.DB
	lock   *fileLock
	uid    string
	logger *slog.Logger

	clock      func() time.Time
	capacity   uint64
	chunkChars int
}

// Option adjusts store behavior at Create or Open time.
type Option func(*options)

type options struct {
	capacity   *uint64
	chunkChars *int
	clock      func() time.Time
}

// WithCapacity bounds the store file size in bytes. Zero means unlimited.
// The value is persisted in the store and reloaded on Open.
func WithCapacity(bytes uint64) Option {
	return func(o *options) { o.capacity = &bytes }
}

// WithChunkChars sets the extracted-text length above which content is
// split into chunk frames. The value is persisted in the store.
func WithChunkChars(chars int) Option {
	return func(o *options) { o.chunkChars = &chars }
}

// WithClock replaces the timestamp source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

// Create initializes a new store at path and returns it open. The path must
// not already exist; Create never overwrites. Parent directories are
// created as needed.
func Create(path string, opts ...Option) (*Memory, error) {
	if path == "" {
		return nil, errf(KindIo, "store path must not be empty")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errf(KindIo, "store already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return nil, wrapf(KindIo, err, "probing %s", path)
	}

	o := buildOptions(opts)
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, wrapf(KindIo, err, "creating store directory")
	}

	lock, err := acquireLock(path, logger)
	if err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		lock.Release()
		return nil, err
	}

	fail := func(err error) (*Memory, error) {
		db.Close()
		lock.Release()
		os.Remove(path)
		return nil, err
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA application_id = %d", appID)); err != nil {
		return fail(wrapf(KindIo, err, "stamping application id"))
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", formatVersion)); err != nil {
		return fail(wrapf(KindIo, err, "stamping format version"))
	}
	if _, err := db.Exec(schema); err != nil {
		return fail(wrapf(KindEncode, err, "creating schema"))
	}

	m := &Memory{
		path:       path,
		db:         db,
		lock:       lock,
		uid:        uuid.NewString(),
		logger:     logger,
		clock:      o.clock,
		capacity:   0,
		chunkChars: DefaultChunkChars,
	}
	if o.capacity != nil {
		m.capacity = *o.capacity
	}
	if o.chunkChars != nil && *o.chunkChars > 0 {
		m.chunkChars = *o.chunkChars
	}

	seed := map[string]string{
		metaStoreUID:     m.uid,
		metaCreatedUnix:  strconv.FormatInt(m.clock().Unix(), 10),
		metaNextFrameID:  "0",
		metaCommittedSeq: "0",
		metaCapacity:     strconv.FormatUint(m.capacity, 10),
		metaChunkChars:   strconv.Itoa(m.chunkChars),
	}
	for key, value := range seed {
		if err := m.metaSet(key, value); err != nil {
			return fail(err)
		}
	}

	logger.Info("store created", "path", path, "uid", m.uid)
	return m, nil
}

// Open opens an existing store at path. The file must be an engram store
// with a format version this engine understands and must not be held by
// another live process.
func Open(path string, opts ...Option) (*Memory, error) {
	if path == "" {
		return nil, errf(KindIo, "store path must not be empty")
	}
	if err := checkHeader(path); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	logger := slog.Default().With("component", "store")

	lock, err := acquireLock(path, logger)
	if err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		lock.Release()
		return nil, err
	}

	fail := func(err error) (*Memory, error) {
		db.Close()
		lock.Release()
		return nil, err
	}

	var gotAppID int64
	if err := db.QueryRow("PRAGMA application_id").Scan(&gotAppID); err != nil {
		return fail(wrapf(KindIo, err, "reading application id"))
	}
	if gotAppID != appID {
		return fail(errf(KindInvalidHeader, "%s is not an engram store (application id %#x)", path, gotAppID))
	}

	var gotVersion int64
	if err := db.QueryRow("PRAGMA user_version").Scan(&gotVersion); err != nil {
		return fail(wrapf(KindIo, err, "reading format version"))
	}
	if gotVersion > formatVersion {
		return fail(errf(KindDecode, "store format version %d is newer than supported version %d", gotVersion, formatVersion))
	}

	for _, object := range catalogObjects {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", object).Scan(&n)
		if err != nil {
			return fail(wrapf(KindIo, err, "reading schema catalog"))
		}
		if n == 0 {
			return fail(errf(KindInvalidCatalog, "schema catalog is missing %q", object))
		}
	}

	m := &Memory{
		path:   path,
		db:     db,
		lock:   lock,
		logger: logger,
		clock:  o.clock,
	}

	if m.uid, err = m.metaGet(metaStoreUID); err != nil {
		return fail(err)
	}
	capacityStr, err := m.metaGet(metaCapacity)
	if err != nil {
		return fail(err)
	}
	if m.capacity, err = strconv.ParseUint(capacityStr, 10, 64); err != nil {
		return fail(wrapf(KindDecode, err, "parsing capacity"))
	}
	chunkStr, err := m.metaGet(metaChunkChars)
	if err != nil {
		return fail(err)
	}
	if m.chunkChars, err = strconv.Atoi(chunkStr); err != nil {
		return fail(wrapf(KindDecode, err, "parsing chunk size"))
	}

	if err := m.checkOpLog(); err != nil {
		return fail(err)
	}

	if o.capacity != nil && *o.capacity != m.capacity {
		m.capacity = *o.capacity
		if err := m.metaSet(metaCapacity, strconv.FormatUint(m.capacity, 10)); err != nil {
			return fail(err)
		}
	}
	if o.chunkChars != nil && *o.chunkChars > 0 && *o.chunkChars != m.chunkChars {
		m.chunkChars = *o.chunkChars
		if err := m.metaSet(metaChunkChars, strconv.Itoa(m.chunkChars)); err != nil {
			return fail(err)
		}
	}

	logger.Debug("store opened", "path", path, "uid", m.uid)
	return m, nil
}

// Close releases the database and the sidecar lock. Closing an already
// closed Memory is a no-op.
func (m *Memory) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if m.lock != nil {
		if lerr := m.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
		m.lock = nil
	}
	m.logger.Debug("store closed", "path", m.path)
	if err != nil {
		return wrapf(KindIo, err, "closing store")
	}
	return nil
}

// Path returns the store file path.
func (m *Memory) Path() string { return m.path }

// UID returns the store identity assigned at Create.
func (m *Memory) UID() string { return m.uid }

// requireOpen guards methods against use after Close.
func (m *Memory) requireOpen() error {
	if m.db == nil {
		return errf(KindRequiresOpen, "store is closed")
	}
	return nil
}

// openDB opens the SQLite file pinned to a single connection so statement
// order matches the single-owner contract.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapf(KindIo, err, "opening database")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, wrapf(KindIo, err, "applying %s", pragma)
		}
	}
	return db, nil
}

// checkHeader rejects files that are not SQLite databases before any
// connection is opened.
func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return wrapf(KindIo, err, "opening %s", path)
	}
	defer f.Close()

	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return errf(KindInvalidHeader, "%s is too short to be an engram store", path)
	}
	if string(header) != sqliteMagic {
		return errf(KindInvalidHeader, "%s is not an engram store", path)
	}
	return nil
}

// checkOpLog verifies the op log is readable and the committed sequence is
// not ahead of the log.
func (m *Memory) checkOpLog() error {
	var maxSeq int64
	if err := m.db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM ops").Scan(&maxSeq); err != nil {
		return wrapf(KindOpLogCorrupted, err, "reading op log")
	}
	committedStr, err := m.metaGet(metaCommittedSeq)
	if err != nil {
		return err
	}
	committed, err := strconv.ParseInt(committedStr, 10, 64)
	if err != nil {
		return wrapf(KindOpLogCorrupted, err, "parsing committed sequence")
	}
	if committed > maxSeq {
		return errf(KindOpLogCorrupted, "committed sequence %d is ahead of op log head %d", committed, maxSeq)
	}
	return nil
}

// metaGet reads one meta value.
func (m *Memory) metaGet(key string) (string, error) {
	var value string
	err := m.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errf(KindInvalidCatalog, "meta key %q is missing", key)
	}
	if err != nil {
		return "", wrapf(KindIo, err, "reading meta %q", key)
	}
	return value, nil
}

// metaSet writes one meta value.
func (m *Memory) metaSet(key, value string) error {
	_, err := m.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return wrapf(KindIo, err, "writing meta %q", key)
	}
	return nil
}
