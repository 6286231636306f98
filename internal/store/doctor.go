// ABOUTME: Doctor maintenance: plan, apply, heal; stale locks, index rebuilds, vacuum
// ABOUTME: Plans round-trip through callers verbatim and apply executes exactly what was planned

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Doctor report statuses.
const (
	DoctorClean    = "clean"
	DoctorHealed   = "healed"
	DoctorPartial  = "partial"
	DoctorFailed   = "failed"
	DoctorPlanOnly = "plan_only"
)

// Doctor phase statuses.
const (
	PhaseOK      = "ok"
	PhaseFailed  = "failed"
	PhaseSkipped = "skipped"
)

// Doctor phase names.
const (
	phaseProbe      = "probe"
	phaseStaleLock  = "stale_lock"
	phaseQuickCheck = "quick_check"
	phaseLexIndex   = "lex_index"
	phaseTimeIndex  = "time_index"
	phaseVecIndex   = "vec_index"
	phaseCheckpoint = "wal_checkpoint"
	phaseVacuum     = "vacuum"
)

// planVersion guards plan compatibility between PlanDoctor and ApplyDoctor.
const planVersion = 1

// DoctorOptions select repairs beyond the always-on probe and integrity
// sweep.
type DoctorOptions struct {
	RebuildTimeIndex bool `json:"rebuild_time_index"`
	RebuildLexIndex  bool `json:"rebuild_lex_index"`

	// RebuildVecIndex is accepted for callers that probe capabilities; the
	// phase reports skipped because no vector index is built in.
	RebuildVecIndex bool `json:"rebuild_vec_index"`

	// Vacuum purges tombstoned frames and compacts the file.
	Vacuum bool `json:"vacuum"`

	// DryRun plans without applying.
	DryRun bool `json:"dry_run"`

	// Quiet demotes per-phase log lines to debug level.
	Quiet bool `json:"quiet"`
}

// PlannedPhase is one step of a doctor plan with the reason it was
// included.
type PlannedPhase struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// DoctorPlan is an executable description of a doctor run. Plans travel to
// callers as JSON and come back to ApplyDoctor unchanged.
type DoctorPlan struct {
	Version     int            `json:"version"`
	FilePath    string         `json:"file_path"`
	CreatedUnix int64          `json:"created_unix"`
	Phases      []PlannedPhase `json:"phases"`
	Options     DoctorOptions  `json:"options"`
}

// DoctorPhase is one executed step.
type DoctorPhase struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS uint64 `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
}

// DoctorFinding is one observation made while doctoring.
type DoctorFinding struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Repaired bool   `json:"repaired"`
}

// DoctorMetrics summarize a run.
type DoctorMetrics struct {
	TotalDurationMS uint64 `json:"total_duration_ms"`
	FramesChecked   uint64 `json:"frames_checked"`
	RepairsApplied  uint64 `json:"repairs_applied"`
	WalBytesBefore  uint64 `json:"wal_bytes_before"`
	WalBytesAfter   uint64 `json:"wal_bytes_after"`
}

// DoctorReport is the outcome of a doctor run.
type DoctorReport struct {
	Plan         *DoctorPlan         `json:"plan"`
	Status       string              `json:"status"`
	Phases       []DoctorPhase       `json:"phases"`
	Findings     []DoctorFinding     `json:"findings"`
	Metrics      DoctorMetrics       `json:"metrics"`
	Verification *VerificationReport `json:"verification"`
}

// Doctor plans and applies maintenance on the store at path. With DryRun
// the plan is returned unexecuted in a plan_only report. The store must
// not be open in any live process.
func Doctor(path string, opts DoctorOptions) (*DoctorReport, error) {
	plan, err := PlanDoctor(path, opts)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return &DoctorReport{Plan: plan, Status: DoctorPlanOnly}, nil
	}
	return ApplyDoctor(path, plan)
}

// PlanDoctor inspects the store read-only and builds the phase list a
// doctor run would execute. A store held by a live process fails with
// KindLocked.
func PlanDoctor(path string, opts DoctorOptions) (*DoctorPlan, error) {
	if path == "" {
		return nil, errf(KindIo, "store path must not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, wrapf(KindIo, err, "planning doctor for %s", path)
	}
	if err := checkHeader(path); err != nil {
		return nil, err
	}

	plan := &DoctorPlan{
		Version:     planVersion,
		FilePath:    path,
		CreatedUnix: time.Now().Unix(),
		Options:     opts,
	}
	add := func(name, reason string) {
		plan.Phases = append(plan.Phases, PlannedPhase{Name: name, Reason: reason})
	}

	add(phaseProbe, "validate store identity and schema")

	if info, err := readLockInfo(lockPath(path)); err == nil {
		if processAlive(info.PID) {
			return nil, errf(KindLocked, "store is locked by pid %d on %s", info.PID, info.Host)
		}
		add(phaseStaleLock, fmt.Sprintf("lock left behind by dead pid %d", info.PID))
	} else if !os.IsNotExist(err) {
		add(phaseStaleLock, "lock file is unreadable")
	}

	add(phaseQuickCheck, "integrity sweep")

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, wrapf(KindIo, err, "probing %s", path)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	lexReason := ""
	if opts.RebuildLexIndex {
		lexReason = "rebuild requested"
	} else if mismatch, detail := lexDocCountMismatch(db); mismatch {
		lexReason = detail
	}
	if lexReason != "" {
		add(phaseLexIndex, lexReason)
	}

	if opts.RebuildTimeIndex {
		add(phaseTimeIndex, "rebuild requested")
	} else {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'idx_frames_ts'").Scan(&n); err == nil && n == 0 {
			add(phaseTimeIndex, "time index is missing")
		}
	}

	if opts.RebuildVecIndex {
		add(phaseVecIndex, "rebuild requested")
	}

	add(phaseCheckpoint, "flush wal into the main file")

	if opts.Vacuum {
		add(phaseVacuum, "vacuum requested")
	}

	return plan, nil
}

// ApplyDoctor executes a plan exactly as given. Plans with no phases fail
// with KindDoctorNoOp; plans made for another file with KindDoctor.
func ApplyDoctor(path string, plan *DoctorPlan) (*DoctorReport, error) {
	if plan == nil {
		return nil, errf(KindDoctor, "doctor plan is missing")
	}
	if plan.Version != planVersion {
		return nil, errf(KindDoctor, "unsupported doctor plan version %d", plan.Version)
	}
	if plan.FilePath != "" && plan.FilePath != path {
		return nil, errf(KindDoctor, "plan was created for %q, not %q", plan.FilePath, path)
	}
	if len(plan.Phases) == 0 {
		return nil, errf(KindDoctorNoOp, "doctor plan has no phases")
	}

	logger := slog.Default().With("component", "doctor")
	run := &doctorRun{
		path:   path,
		plan:   plan,
		quiet:  plan.Options.Quiet,
		logger: logger,
		report: &DoctorReport{Plan: plan},
	}
	return run.execute()
}

// doctorRun carries state across phases of one apply.
type doctorRun struct {
	path   string
	plan   *DoctorPlan
	quiet  bool
	logger *slog.Logger
	report *DoctorReport

	db        *sql.DB
	staleLock bool
	repairs   uint64
	failed    bool
	probeDead bool
}

func (r *doctorRun) execute() (*DoctorReport, error) {
	started := time.Now()

	// Holding the sidecar lock gives the run exclusive access; a stale
	// lock is broken during acquisition.
	if _, err := os.Stat(lockPath(r.path)); err == nil {
		info, rerr := readLockInfo(lockPath(r.path))
		r.staleLock = rerr != nil || !processAlive(info.PID)
	}
	lock, err := acquireLock(r.path, r.logger)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	r.report.Metrics.WalBytesBefore = statBytes(r.path + "-wal")

	db, err := openDB(r.path)
	if err != nil {
		return nil, err
	}
	r.db = db
	defer func() {
		if r.db != nil {
			r.db.Close()
		}
	}()

	for _, planned := range r.plan.Phases {
		r.runPhase(planned)
	}

	r.db.Close()
	r.db = nil

	r.report.Metrics.WalBytesAfter = statBytes(r.path + "-wal")
	r.report.Metrics.RepairsApplied = r.repairs
	r.report.Metrics.TotalDurationMS = uint64(time.Since(started).Milliseconds())

	switch {
	case r.probeDead:
		r.report.Status = DoctorFailed
	case r.failed:
		r.report.Status = DoctorPartial
	case r.repairs > 0:
		r.report.Status = DoctorHealed
	default:
		r.report.Status = DoctorClean
	}

	if !r.probeDead {
		verification, err := Verify(r.path, false)
		if err == nil {
			r.report.Verification = verification
		}
	}

	r.logger.Info("doctor finished", "path", r.path, "status", r.report.Status, "repairs", r.repairs)
	return r.report, nil
}

func (r *doctorRun) runPhase(planned PlannedPhase) {
	if r.probeDead {
		r.phase(planned.Name, PhaseSkipped, 0, "probe failed")
		return
	}

	started := time.Now()
	status, detail := r.dispatch(planned)
	elapsed := uint64(time.Since(started).Milliseconds())
	r.phase(planned.Name, status, elapsed, detail)

	if status == PhaseFailed {
		if planned.Name == phaseProbe {
			r.probeDead = true
		} else {
			r.failed = true
		}
	}
}

func (r *doctorRun) dispatch(planned PlannedPhase) (string, string) {
	switch planned.Name {
	case phaseProbe:
		return r.phaseProbe()
	case phaseStaleLock:
		return r.phaseStaleLock()
	case phaseQuickCheck:
		return r.phaseQuickCheck()
	case phaseLexIndex:
		return r.phaseLexIndex(planned.Reason)
	case phaseTimeIndex:
		return r.phaseTimeIndex()
	case phaseVecIndex:
		r.finding("info", "vector index rebuild requested but no vector index is built into this engine", false)
		return PhaseSkipped, "no vector index in this build"
	case phaseCheckpoint:
		return r.phaseCheckpoint()
	case phaseVacuum:
		return r.phaseVacuum()
	default:
		r.finding("warn", fmt.Sprintf("plan contains unknown phase %q", planned.Name), false)
		return PhaseSkipped, "unknown phase"
	}
}

func (r *doctorRun) phaseProbe() (string, string) {
	var gotAppID int64
	if err := r.db.QueryRow("PRAGMA application_id").Scan(&gotAppID); err != nil {
		return PhaseFailed, err.Error()
	}
	if gotAppID != appID {
		r.finding("error", fmt.Sprintf("application id %#x is not an engram store", gotAppID), false)
		return PhaseFailed, "not an engram store"
	}
	var gotVersion int64
	if err := r.db.QueryRow("PRAGMA user_version").Scan(&gotVersion); err != nil {
		return PhaseFailed, err.Error()
	}
	if gotVersion > formatVersion {
		r.finding("error", fmt.Sprintf("format version %d is newer than supported %d", gotVersion, formatVersion), false)
		return PhaseFailed, "format too new"
	}
	for _, object := range catalogObjects {
		var n int
		if err := r.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", object).Scan(&n); err != nil || n == 0 {
			r.finding("error", fmt.Sprintf("schema catalog is missing %q", object), false)
			return PhaseFailed, "schema incomplete"
		}
	}
	var frames uint64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM frames").Scan(&frames); err != nil {
		return PhaseFailed, err.Error()
	}
	r.report.Metrics.FramesChecked = frames
	return PhaseOK, fmt.Sprintf("%d frames", frames)
}

func (r *doctorRun) phaseStaleLock() (string, string) {
	if !r.staleLock {
		return PhaseSkipped, "no stale lock present"
	}
	// Broken during lock acquisition above.
	r.repairs++
	r.finding("warn", "removed stale lock left behind by a dead process", true)
	return PhaseOK, "stale lock removed"
}

func (r *doctorRun) phaseQuickCheck() (string, string) {
	rows, err := r.db.Query("PRAGMA quick_check")
	if err != nil {
		return PhaseFailed, err.Error()
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return PhaseFailed, err.Error()
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return PhaseFailed, err.Error()
	}
	if len(problems) > 0 {
		for i, problem := range problems {
			if i == 3 {
				break
			}
			r.finding("error", "integrity: "+problem, false)
		}
		return PhaseFailed, fmt.Sprintf("%d integrity problems", len(problems))
	}
	return PhaseOK, "ok"
}

func (r *doctorRun) phaseLexIndex(reason string) (string, string) {
	if _, err := r.db.Exec("INSERT INTO frames_fts(frames_fts) VALUES ('delete-all')"); err != nil {
		return PhaseFailed, err.Error()
	}
	res, err := r.db.Exec(
		"INSERT INTO frames_fts(rowid, search_text, title) SELECT id, search_text, title FROM frames WHERE indexed = 1 AND status = 'active'",
	)
	if err != nil {
		return PhaseFailed, err.Error()
	}
	indexed, _ := res.RowsAffected()
	r.repairs++
	r.finding("warn", fmt.Sprintf("rebuilt lexical index (%s)", reason), true)
	return PhaseOK, fmt.Sprintf("reindexed %d frames", indexed)
}

func (r *doctorRun) phaseTimeIndex() (string, string) {
	if _, err := r.db.Exec("DROP INDEX IF EXISTS idx_frames_ts"); err != nil {
		return PhaseFailed, err.Error()
	}
	if _, err := r.db.Exec("CREATE INDEX idx_frames_ts ON frames(ts, id)"); err != nil {
		return PhaseFailed, err.Error()
	}
	r.repairs++
	r.finding("warn", "rebuilt time index", true)
	return PhaseOK, "reindexed"
}

func (r *doctorRun) phaseCheckpoint() (string, string) {
	var busy, logPages, checkpointed int
	err := r.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logPages, &checkpointed)
	if err != nil {
		return PhaseFailed, err.Error()
	}
	if busy != 0 {
		return PhaseFailed, "wal checkpoint reported busy"
	}
	return PhaseOK, fmt.Sprintf("%d pages checkpointed", checkpointed)
}

func (r *doctorRun) phaseVacuum() (string, string) {
	res, err := r.db.Exec("DELETE FROM frames WHERE status = 'tombstone'")
	if err != nil {
		return PhaseFailed, err.Error()
	}
	purged, _ := res.RowsAffected()
	if _, err := r.db.Exec("VACUUM"); err != nil {
		return PhaseFailed, err.Error()
	}
	if purged > 0 {
		r.repairs++
		r.finding("info", fmt.Sprintf("purged %d tombstoned frames", purged), true)
	}
	return PhaseOK, fmt.Sprintf("purged %d frames", purged)
}

func (r *doctorRun) phase(name, status string, durationMS uint64, detail string) {
	r.report.Phases = append(r.report.Phases, DoctorPhase{
		Name:       name,
		Status:     status,
		DurationMS: durationMS,
		Detail:     detail,
	})
	if r.quiet {
		r.logger.Debug("doctor phase", "phase", name, "status", status, "detail", detail)
	} else {
		r.logger.Info("doctor phase", "phase", name, "status", status, "detail", detail)
	}
}

func (r *doctorRun) finding(severity, message string, repaired bool) {
	r.report.Findings = append(r.report.Findings, DoctorFinding{
		Severity: severity,
		Message:  message,
		Repaired: repaired,
	})
}

// lexDocCountMismatch reports whether the lexical index entry count
// diverges from the indexed frame count.
func lexDocCountMismatch(db *sql.DB) (bool, string) {
	var indexedDocs, ftsDocs uint64
	if err := db.QueryRow("SELECT COUNT(*) FROM frames WHERE indexed = 1 AND status = 'active'").Scan(&indexedDocs); err != nil {
		return false, ""
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM frames_fts").Scan(&ftsDocs); err != nil {
		return true, "lexical index is unreadable"
	}
	if indexedDocs != ftsDocs {
		return true, fmt.Sprintf("doc count mismatch (%d frames, %d index entries)", indexedDocs, ftsDocs)
	}
	return false, ""
}

func statBytes(path string) uint64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return uint64(info.Size())
}
