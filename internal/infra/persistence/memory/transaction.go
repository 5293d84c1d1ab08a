package memory

import (
	"time"

	"patientcore/pkg/domain"
)

var (
	_ domain.Transaction     = (*transaction)(nil)
	_ domain.TransactionView = (*stateView)(nil)
	_ domain.RuleView        = (*stateView)(nil)
)

// transaction is a mutation set applied to a cloned copy of store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the transactional state read-only.
func (tx *transaction) Snapshot() TransactionView {
	return &stateView{state: &tx.state}
}

// CreatePatient stores a new patient identity within the transaction. The key
// must not hold either role already.
func (tx *transaction) CreatePatient(p Patient) (Patient, error) {
	if _, exists := tx.state.patients[p.Key]; exists {
		return Patient{}, domain.AlreadyRegisteredError{Key: p.Key}
	}
	if _, exists := tx.state.institutions[p.Key]; exists {
		return Patient{}, domain.AlreadyRegisteredError{Key: p.Key}
	}
	p.RegisteredAt = tx.now
	tx.state.patients[p.Key] = p
	tx.recordChange(Change{Entity: domain.EntityPatient, Action: domain.ActionCreate, Subject: p.Key, After: p})
	return p, nil
}

// CreateInstitution stores a new institution identity within the transaction,
// under the same one-role-per-key discipline.
func (tx *transaction) CreateInstitution(inst Institution) (Institution, error) {
	if _, exists := tx.state.institutions[inst.Key]; exists {
		return Institution{}, domain.AlreadyRegisteredError{Key: inst.Key}
	}
	if _, exists := tx.state.patients[inst.Key]; exists {
		return Institution{}, domain.AlreadyRegisteredError{Key: inst.Key}
	}
	inst.RegisteredAt = tx.now
	tx.state.institutions[inst.Key] = inst
	tx.recordChange(Change{Entity: domain.EntityInstitution, Action: domain.ActionCreate, Subject: inst.Key, After: inst})
	return inst, nil
}

// AppendRecord adds a record at the next free index of the patient's sequence.
func (tx *transaction) AppendRecord(patient Key, record MedicalRecord) (int, error) {
	if _, ok := tx.state.patients[patient]; !ok {
		return 0, domain.NotAPatientError{Key: patient}
	}
	before := tx.state.records[patient]
	record.CreatedAt = tx.now
	tx.state.records[patient] = append(append([]MedicalRecord(nil), before...), record)
	tx.recordChange(Change{
		Entity:  domain.EntityMedicalRecord,
		Action:  domain.ActionAppend,
		Subject: patient,
		Before:  before,
		After:   tx.state.records[patient],
	})
	return len(before), nil
}

// AppendAccessEntry adds an audit entry at the next free index of the
// patient's audit sequence.
func (tx *transaction) AppendAccessEntry(patient Key, entry AccessLogEntry) (int, error) {
	if _, ok := tx.state.patients[patient]; !ok {
		return 0, domain.NotAPatientError{Key: patient}
	}
	before := tx.state.accessLogs[patient]
	entry.Timestamp = tx.now
	tx.state.accessLogs[patient] = append(append([]AccessLogEntry(nil), before...), entry)
	tx.recordChange(Change{
		Entity:  domain.EntityAccessLog,
		Action:  domain.ActionAppend,
		Subject: patient,
		Before:  before,
		After:   tx.state.accessLogs[patient],
	})
	return len(before), nil
}

// FindPatient retrieves a patient from the transactional state.
func (tx *transaction) FindPatient(key Key) (Patient, bool) {
	p, ok := tx.state.patients[key]
	return p, ok
}

// FindInstitution retrieves an institution from the transactional state.
func (tx *transaction) FindInstitution(key Key) (Institution, bool) {
	inst, ok := tx.state.institutions[key]
	return inst, ok
}

// stateView is a read-only window over a memoryState. It serves both the
// TransactionView and RuleView contracts.
type stateView struct {
	state *memoryState
}

func (v *stateView) ListPatients() []Patient {
	out := make([]Patient, 0, len(v.state.patients))
	for _, p := range v.state.patients {
		out = append(out, p)
	}
	return out
}

func (v *stateView) ListInstitutions() []Institution {
	out := make([]Institution, 0, len(v.state.institutions))
	for _, inst := range v.state.institutions {
		out = append(out, inst)
	}
	return out
}

func (v *stateView) FindPatient(key Key) (Patient, bool) {
	p, ok := v.state.patients[key]
	return p, ok
}

func (v *stateView) FindInstitution(key Key) (Institution, bool) {
	inst, ok := v.state.institutions[key]
	return inst, ok
}

func (v *stateView) Records(patient Key) []MedicalRecord {
	return append([]MedicalRecord(nil), v.state.records[patient]...)
}

func (v *stateView) AccessLog(patient Key) []AccessLogEntry {
	return append([]AccessLogEntry(nil), v.state.accessLogs[patient]...)
}
