// ABOUTME: Store verification producing a structured pass/fail report by path
// ABOUTME: Shallow checks cover header and catalog; deep adds quick_check and content hashes

package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Check and report statuses.
const (
	CheckPassed  = "passed"
	CheckFailed  = "failed"
	CheckSkipped = "skipped"
)

// VerificationCheck is one named check with its outcome.
type VerificationCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// VerificationReport is the outcome of Verify. OverallStatus is "failed"
// when any check failed, otherwise "passed".
type VerificationReport struct {
	FilePath      string              `json:"file_path"`
	OverallStatus string              `json:"overall_status"`
	Checks        []VerificationCheck `json:"checks"`
}

type checkRecorder struct {
	checks []VerificationCheck
}

func (r *checkRecorder) pass(name, details string) {
	r.checks = append(r.checks, VerificationCheck{Name: name, Status: CheckPassed, Details: details})
}

func (r *checkRecorder) fail(name, details string) {
	r.checks = append(r.checks, VerificationCheck{Name: name, Status: CheckFailed, Details: details})
}

func (r *checkRecorder) skip(name, details string) {
	r.checks = append(r.checks, VerificationCheck{Name: name, Status: CheckSkipped, Details: details})
}

func (r *checkRecorder) report(path string) *VerificationReport {
	overall := CheckPassed
	failed := false
	allSkipped := len(r.checks) > 0
	for _, check := range r.checks {
		if check.Status == CheckFailed {
			failed = true
		}
		if check.Status != CheckSkipped {
			allSkipped = false
		}
	}
	if failed {
		overall = CheckFailed
	} else if allSkipped {
		overall = CheckSkipped
	}
	return &VerificationReport{FilePath: path, OverallStatus: overall, Checks: r.checks}
}

// shallowChecks run against an open connection, in report order.
var shallowChecks = []string{"application_id", "format_version", "schema_objects", "frame_count", "time_index_present", "lex_index_present", "op_log"}

// deepChecks extend shallow verification.
var deepChecks = []string{"quick_check", "payload_hashes", "lex_index_doc_count", "time_index_order"}

// Verify inspects the store at path without taking the lock and returns a
// structured report. A missing or unreadable path is an error, not a
// failed report; a readable file that is not a store reports failures.
func Verify(path string, deep bool) (*VerificationReport, error) {
	if path == "" {
		return nil, errf(KindIo, "store path must not be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, wrapf(KindIo, err, "verifying %s", path)
	}

	rec := &checkRecorder{}
	rec.pass("file_exists", fmt.Sprintf("%d bytes", info.Size()))

	skipRest := func(reason string) *VerificationReport {
		for _, name := range shallowChecks {
			rec.skip(name, reason)
		}
		if deep {
			for _, name := range deepChecks {
				rec.skip(name, reason)
			}
		}
		return rec.report(path)
	}

	if err := readMagic(path); err != nil {
		rec.fail("header_magic", err.Error())
		return skipRest("header check failed"), nil
	}
	rec.pass("header_magic", "sqlite header present")

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, wrapf(KindIo, err, "opening %s read-only", path)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	verifyShallow(db, rec)
	if deep {
		verifyDeep(db, rec)
	}
	return rec.report(path), nil
}

func readMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	header := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("file too short for a store header")
	}
	if string(header) != sqliteMagic {
		return fmt.Errorf("not a sqlite database")
	}
	return nil
}

func verifyShallow(db *sql.DB, rec *checkRecorder) {
	var gotAppID int64
	if err := db.QueryRow("PRAGMA application_id").Scan(&gotAppID); err != nil {
		rec.fail("application_id", err.Error())
	} else if gotAppID != appID {
		rec.fail("application_id", fmt.Sprintf("application id %#x is not an engram store", gotAppID))
	} else {
		rec.pass("application_id", "engram store")
	}

	var gotVersion int64
	if err := db.QueryRow("PRAGMA user_version").Scan(&gotVersion); err != nil {
		rec.fail("format_version", err.Error())
	} else if gotVersion > formatVersion {
		rec.fail("format_version", fmt.Sprintf("version %d is newer than supported %d", gotVersion, formatVersion))
	} else {
		rec.pass("format_version", fmt.Sprintf("version %d", gotVersion))
	}

	var missing []string
	for _, object := range catalogObjects {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", object).Scan(&n); err != nil || n == 0 {
			missing = append(missing, object)
		}
	}
	if len(missing) > 0 {
		rec.fail("schema_objects", "missing: "+strings.Join(missing, ", "))
		for _, name := range []string{"frame_count", "time_index_present", "lex_index_present", "op_log"} {
			rec.skip(name, "schema incomplete")
		}
		return
	}
	rec.pass("schema_objects", "all present")

	var frames uint64
	if err := db.QueryRow("SELECT COUNT(*) FROM frames").Scan(&frames); err != nil {
		rec.fail("frame_count", err.Error())
	} else {
		rec.pass("frame_count", fmt.Sprintf("%d frames", frames))
	}

	for _, check := range []struct{ name, object string }{
		{"time_index_present", "idx_frames_ts"},
		{"lex_index_present", "frames_fts"},
	} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", check.object).Scan(&n); err != nil {
			rec.fail(check.name, err.Error())
		} else if n == 0 {
			rec.fail(check.name, check.object+" is missing")
		} else {
			rec.pass(check.name, check.object)
		}
	}

	verifyOpLog(db, rec)
}

func verifyOpLog(db *sql.DB, rec *checkRecorder) {
	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM ops").Scan(&maxSeq); err != nil {
		rec.fail("op_log", err.Error())
		return
	}
	var committedStr string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = ?", metaCommittedSeq).Scan(&committedStr); err != nil {
		rec.fail("op_log", "committed sequence missing from meta")
		return
	}
	committed, err := strconv.ParseInt(committedStr, 10, 64)
	if err != nil {
		rec.fail("op_log", "committed sequence is not a number")
		return
	}
	if committed > maxSeq {
		rec.fail("op_log", fmt.Sprintf("committed sequence %d is ahead of op log head %d", committed, maxSeq))
		return
	}

	var nextIDStr string
	if err := db.QueryRow("SELECT value FROM meta WHERE key = ?", metaNextFrameID).Scan(&nextIDStr); err != nil {
		rec.fail("op_log", "frame counter missing from meta")
		return
	}
	nextID, err := strconv.ParseUint(nextIDStr, 10, 64)
	if err != nil {
		rec.fail("op_log", "frame counter is not a number")
		return
	}
	var outOfRange int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM ops WHERE frame_id IS NOT NULL AND frame_id >= ?", nextID,
	).Scan(&outOfRange); err != nil {
		rec.fail("op_log", err.Error())
		return
	}
	if outOfRange > 0 {
		rec.fail("op_log", fmt.Sprintf("%d ops reference frame ids that were never issued", outOfRange))
		return
	}
	rec.pass("op_log", fmt.Sprintf("head %d, committed %d", maxSeq, committed))
}

func verifyDeep(db *sql.DB, rec *checkRecorder) {
	rows, err := db.Query("PRAGMA quick_check")
	if err != nil {
		rec.fail("quick_check", err.Error())
	} else {
		var problems []string
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				problems = append(problems, err.Error())
				break
			}
			if line != "ok" {
				problems = append(problems, line)
			}
		}
		rows.Close()
		if len(problems) > 0 {
			if len(problems) > 3 {
				problems = problems[:3]
			}
			rec.fail("quick_check", strings.Join(problems, "; "))
		} else {
			rec.pass("quick_check", "ok")
		}
	}

	verifyPayloadHashes(db, rec)

	var indexedDocs, ftsDocs uint64
	err = db.QueryRow("SELECT COUNT(*) FROM frames WHERE indexed = 1 AND status = 'active'").Scan(&indexedDocs)
	if err == nil {
		err = db.QueryRow("SELECT COUNT(*) FROM frames_fts").Scan(&ftsDocs)
	}
	if err != nil {
		rec.fail("lex_index_doc_count", err.Error())
	} else if indexedDocs != ftsDocs {
		rec.fail("lex_index_doc_count", fmt.Sprintf("%d indexed frames but %d index entries", indexedDocs, ftsDocs))
	} else {
		rec.pass("lex_index_doc_count", fmt.Sprintf("%d entries", ftsDocs))
	}

	verifyTimeIndexOrder(db, rec)
}

func verifyPayloadHashes(db *sql.DB, rec *checkRecorder) {
	rows, err := db.Query("SELECT id, payload, content_hash FROM frames WHERE payload IS NOT NULL")
	if err != nil {
		rec.fail("payload_hashes", err.Error())
		return
	}
	defer rows.Close()

	var checked int
	var mismatched []string
	for rows.Next() {
		var id uint64
		var payload []byte
		var recorded string
		if err := rows.Scan(&id, &payload, &recorded); err != nil {
			rec.fail("payload_hashes", err.Error())
			return
		}
		checked++
		sum := blake2b.Sum256(payload)
		if hex.EncodeToString(sum[:]) != recorded {
			mismatched = append(mismatched, strconv.FormatUint(id, 10))
		}
	}
	if err := rows.Err(); err != nil {
		rec.fail("payload_hashes", err.Error())
		return
	}
	if len(mismatched) > 0 {
		shown := mismatched
		if len(shown) > 5 {
			shown = shown[:5]
		}
		rec.fail("payload_hashes", fmt.Sprintf("%d of %d payloads mismatch (frames %s)", len(mismatched), checked, strings.Join(shown, ", ")))
		return
	}
	rec.pass("payload_hashes", fmt.Sprintf("%d payloads verified", checked))
}

func verifyTimeIndexOrder(db *sql.DB, rec *checkRecorder) {
	rows, err := db.Query("SELECT ts FROM frames INDEXED BY idx_frames_ts ORDER BY ts, id")
	if err != nil {
		rec.fail("time_index_order", err.Error())
		return
	}
	defer rows.Close()

	var previous int64
	var count int
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			rec.fail("time_index_order", err.Error())
			return
		}
		if count > 0 && ts < previous {
			rec.fail("time_index_order", fmt.Sprintf("timestamps out of order at entry %d", count))
			return
		}
		previous = ts
		count++
	}
	if err := rows.Err(); err != nil {
		rec.fail("time_index_order", err.Error())
		return
	}
	rec.pass("time_index_order", fmt.Sprintf("%d entries in order", count))
}
