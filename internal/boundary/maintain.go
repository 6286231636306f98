// ABOUTME: Maintenance adapters: verify, doctor, doctor plan and apply
// ABOUTME: These operate by path on stores no process holds open

package boundary

import (
	"github.com/engramdb/engram/internal/store"
)

// Verify inspects the store at path and returns the verification report
// JSON. deep extends the shallow checks with quick_check, payload hash
// recomputation and index consistency.
func Verify(path []byte, deep bool) (string, *Fault) {
	p, fault := requireText(path, "path")
	if fault != nil {
		return "", fault
	}
	report, err := store.Verify(p, deep)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(report)
}

// Doctor plans and applies maintenance on the store at path and returns
// the report JSON. nil options mean the default probe and sweep only.
func Doctor(path, optionsJSON []byte) (string, *Fault) {
	p, opts, fault := doctorArgs(path, optionsJSON)
	if fault != nil {
		return "", fault
	}
	report, err := store.Doctor(p, opts)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(report)
}

// DoctorPlan builds the phase list a doctor run would execute and
// returns the plan JSON without applying anything.
func DoctorPlan(path, optionsJSON []byte) (string, *Fault) {
	p, opts, fault := doctorArgs(path, optionsJSON)
	if fault != nil {
		return "", fault
	}
	plan, err := store.PlanDoctor(p, opts)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(plan)
}

// DoctorApply executes exactly the phases of a previously returned plan.
// The plan document round-trips through callers verbatim; a plan with an
// empty phase list fails with CodeDoctorNoOp.
func DoctorApply(path, planJSON []byte) (string, *Fault) {
	p, fault := requireText(path, "path")
	if fault != nil {
		return "", fault
	}
	var plan store.DoctorPlan
	if fault := requireJSON(planJSON, "plan_json", &plan); fault != nil {
		return "", fault
	}
	report, err := store.ApplyDoctor(p, &plan)
	if err != nil {
		return "", faultFrom(err)
	}
	return marshalResponse(report)
}

func doctorArgs(path, optionsJSON []byte) (string, store.DoctorOptions, *Fault) {
	p, fault := requireText(path, "path")
	if fault != nil {
		return "", store.DoctorOptions{}, fault
	}
	var opts store.DoctorOptions
	if optionsJSON != nil {
		if fault := decodeJSON(optionsJSON, "options_json", &opts); fault != nil {
			return "", store.DoctorOptions{}, fault
		}
	}
	return p, opts, nil
}
