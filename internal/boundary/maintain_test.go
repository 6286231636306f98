// ABOUTME: Tests for maintenance adapters: verify, doctor, plan/apply round-trip
// ABOUTME: Exercises path-static operations against closed, healthy and locked stores

package boundary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdb/engram/internal/store"
)

// closedStorePath builds a committed two-frame store and closes it so
// path-static maintenance can take the lock.
func closedStorePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "closed.eng")
	handle, fault := Create([]byte(path))
	require.Nil(t, fault)
	for _, doc := range []string{"first remembered note", "second remembered note"} {
		_, fault := Put(handle, []byte(doc))
		require.Nil(t, fault)
	}
	require.Nil(t, Commit(handle))
	require.Nil(t, Close(handle))
	return path
}

func TestVerify_CleanStore(t *testing.T) {
	path := closedStorePath(t)

	out, fault := Verify([]byte(path), false)
	require.Nil(t, fault)

	record := decodeDoc(t, out)
	assert.Equal(t, "passed", record["overall_status"])
	assert.Equal(t, path, record["file_path"])

	checks, ok := record["checks"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, checks)
	for _, raw := range checks {
		check := raw.(map[string]any)
		assert.NotEqual(t, "failed", check["status"], "check %v", check["name"])
	}
}

func TestVerify_DeepAddsChecks(t *testing.T) {
	path := closedStorePath(t)

	out, fault := Verify([]byte(path), true)
	require.Nil(t, fault)

	var report struct {
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	names := make(map[string]bool, len(report.Checks))
	for _, check := range report.Checks {
		names[check.Name] = true
	}
	for _, name := range []string{"quick_check", "payload_hashes", "lex_index_doc_count", "time_index_order"} {
		assert.True(t, names[name], "deep check %s", name)
	}
}

func TestVerify_NullPath(t *testing.T) {
	_, fault := Verify(nil, false)
	require.NotNil(t, fault)
	assert.Equal(t, CodeNullPointer, fault.Code)
}

func TestVerify_MissingFile(t *testing.T) {
	out, fault := Verify([]byte(filepath.Join(t.TempDir(), "nope.eng")), false)
	assert.Empty(t, out)
	require.NotNil(t, fault)
	assert.Equal(t, CodeIo, fault.Code)
}

func TestDoctor_CleanStore(t *testing.T) {
	path := closedStorePath(t)

	out, fault := Doctor([]byte(path), nil)
	require.Nil(t, fault)

	record := decodeDoc(t, out)
	assert.Equal(t, "clean", record["status"])

	metrics := record["metrics"].(map[string]any)
	assert.EqualValues(t, 2, metrics["frames_checked"])
	assert.EqualValues(t, 0, metrics["repairs_applied"])

	verification, ok := record["verification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "passed", verification["overall_status"])
}

func TestDoctor_DryRun(t *testing.T) {
	path := closedStorePath(t)

	out, fault := Doctor([]byte(path), []byte(`{"dry_run":true,"vacuum":true}`))
	require.Nil(t, fault)

	record := decodeDoc(t, out)
	assert.Equal(t, "plan_only", record["status"])
	assert.Nil(t, record["phases"])
	assert.Nil(t, record["verification"])

	plan, ok := record["plan"].(map[string]any)
	require.True(t, ok)
	planned := plan["phases"].([]any)
	var names []string
	for _, raw := range planned {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "vacuum")
}

func TestDoctor_BadOptionsJSON(t *testing.T) {
	path := closedStorePath(t)

	_, fault := Doctor([]byte(path), []byte(`{"vacuum": maybe}`))
	require.NotNil(t, fault)
	assert.Equal(t, CodeJSONParse, fault.Code)
}

func TestDoctor_WhileOpen(t *testing.T) {
	_, path := setupHandle(t)

	_, fault := Doctor([]byte(path), nil)
	require.NotNil(t, fault)
	assert.Equal(t, CodeLocked, fault.Code)
}

func TestDoctor_HealsStaleLock(t *testing.T) {
	path := closedStorePath(t)
	stale := `{"owner":"gone","pid":-1,"host":"nowhere","created_unix":0}`
	require.NoError(t, os.WriteFile(path+".lock", []byte(stale), 0644))

	out, fault := Doctor([]byte(path), nil)
	require.Nil(t, fault)

	record := decodeDoc(t, out)
	assert.Equal(t, "healed", record["status"])

	findings := record["findings"].([]any)
	repaired := false
	for _, raw := range findings {
		if raw.(map[string]any)["repaired"] == true {
			repaired = true
		}
	}
	assert.True(t, repaired)

	_, err := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestDoctorPlan_ApplyRoundTrip(t *testing.T) {
	path := closedStorePath(t)

	planJSON, fault := DoctorPlan([]byte(path), []byte(`{"vacuum":true}`))
	require.Nil(t, fault)

	plan := decodeDoc(t, planJSON)
	assert.EqualValues(t, 1, plan["version"])
	assert.Equal(t, path, plan["file_path"])

	out, fault := DoctorApply([]byte(path), []byte(planJSON))
	require.Nil(t, fault)
	assert.Equal(t, "clean", decodeDoc(t, out)["status"])
}

func TestDoctorApply_NullPlan(t *testing.T) {
	path := closedStorePath(t)

	_, fault := DoctorApply([]byte(path), nil)
	require.NotNil(t, fault)
	assert.Equal(t, CodeNullPointer, fault.Code)
}

func TestDoctorApply_EmptyPhases(t *testing.T) {
	path := closedStorePath(t)
	planJSON, err := json.Marshal(store.DoctorPlan{
		Version:  1,
		FilePath: path,
		Phases:   []store.PlannedPhase{},
	})
	require.NoError(t, err)

	_, fault := DoctorApply([]byte(path), planJSON)
	require.NotNil(t, fault)
	assert.Equal(t, CodeDoctorNoOp, fault.Code)
}

func TestDoctorApply_WrongFile(t *testing.T) {
	planned := closedStorePath(t)
	other := closedStorePath(t)

	planJSON, fault := DoctorPlan([]byte(planned), nil)
	require.Nil(t, fault)

	_, fault = DoctorApply([]byte(other), []byte(planJSON))
	require.NotNil(t, fault)
	assert.Equal(t, CodeDoctor, fault.Code)
}
