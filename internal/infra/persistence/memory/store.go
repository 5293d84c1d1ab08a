// Package memory provides the in-memory implementation of the registry
// persistence store used for tests, ephemeral environments, and as the
// transactional engine behind the durable backends.
package memory

import (
	"context"
	"sync"
	"time"

	"patientcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Patient aliases domain.Patient for in-memory persistence operations.
	Patient = domain.Patient
	// Institution aliases domain.Institution.
	Institution = domain.Institution
	// MedicalRecord aliases domain.MedicalRecord.
	MedicalRecord = domain.MedicalRecord
	// AccessLogEntry aliases domain.AccessLogEntry.
	AccessLogEntry = domain.AccessLogEntry
	// Key aliases domain.Key.
	Key = domain.Key
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	patients     map[Key]Patient
	institutions map[Key]Institution
	records      map[Key][]MedicalRecord
	accessLogs   map[Key][]AccessLogEntry
}

func newMemoryState() memoryState {
	return memoryState{
		patients:     make(map[Key]Patient),
		institutions: make(map[Key]Institution),
		records:      make(map[Key][]MedicalRecord),
		accessLogs:   make(map[Key][]AccessLogEntry),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.patients {
		cloned.patients[k] = v
	}
	for k, v := range s.institutions {
		cloned.institutions[k] = v
	}
	for k, v := range s.records {
		cloned.records[k] = append([]MedicalRecord(nil), v...)
	}
	for k, v := range s.accessLogs {
		cloned.accessLogs[k] = append([]AccessLogEntry(nil), v...)
	}
	return cloned
}

// Snapshot captures a point-in-time clone of the store state in a form
// suitable for JSON persistence.
type Snapshot struct {
	Patients     map[Key]Patient          `json:"patients"`
	Institutions map[Key]Institution      `json:"institutions"`
	Records      map[Key][]MedicalRecord  `json:"records"`
	AccessLogs   map[Key][]AccessLogEntry `json:"access_logs"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Patients:     make(map[Key]Patient, len(state.patients)),
		Institutions: make(map[Key]Institution, len(state.institutions)),
		Records:      make(map[Key][]MedicalRecord, len(state.records)),
		AccessLogs:   make(map[Key][]AccessLogEntry, len(state.accessLogs)),
	}
	for k, v := range state.patients {
		s.Patients[k] = v
	}
	for k, v := range state.institutions {
		s.Institutions[k] = v
	}
	for k, v := range state.records {
		s.Records[k] = append([]MedicalRecord(nil), v...)
	}
	for k, v := range state.accessLogs {
		s.AccessLogs[k] = append([]AccessLogEntry(nil), v...)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Patients {
		state.patients[k] = v
	}
	for k, v := range s.Institutions {
		state.institutions[k] = v
	}
	for k, v := range s.Records {
		state.records[k] = append([]MedicalRecord(nil), v...)
	}
	for k, v := range s.AccessLogs {
		state.accessLogs[k] = append([]AccessLogEntry(nil), v...)
	}
	return state
}

// migrateSnapshot normalizes snapshots written by older layouts so hydration
// never observes nil buckets.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Patients == nil {
		snapshot.Patients = map[Key]Patient{}
	}
	if snapshot.Institutions == nil {
		snapshot.Institutions = map[Key]Institution{}
	}
	if snapshot.Records == nil {
		snapshot.Records = map[Key][]MedicalRecord{}
	}
	if snapshot.AccessLogs == nil {
		snapshot.AccessLogs = map[Key][]AccessLogEntry{}
	}
	return snapshot
}

// Store provides an in-memory transactional registry store. All calls execute
// under one lock, giving the single-writer, fully-serialized ordering the
// registry requires: a call either commits its full mutation set or leaves no
// trace.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the candidate state before commit; a blocking
// violation or an fn error discards the copy entirely.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := &stateView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(&stateView{state: &snapshot})
}

// ExportState returns a deep copy of committed state for durable backends.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces committed state with the supplied snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// Read helpers ---------------------------------------------------------------

// GetPatient retrieves a patient by key from committed state.
func (s *Store) GetPatient(key Key) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.patients[key]
	return p, ok
}

// GetInstitution retrieves an institution by key from committed state.
func (s *Store) GetInstitution(key Key) (Institution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.state.institutions[key]
	return inst, ok
}

// ListPatients returns all patients from committed state.
func (s *Store) ListPatients() []Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Patient, 0, len(s.state.patients))
	for _, p := range s.state.patients {
		out = append(out, p)
	}
	return out
}

// ListInstitutions returns all institutions from committed state.
func (s *Store) ListInstitutions() []Institution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Institution, 0, len(s.state.institutions))
	for _, inst := range s.state.institutions {
		out = append(out, inst)
	}
	return out
}

// RecordCount returns the length of the patient's record sequence.
func (s *Store) RecordCount(patient Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.records[patient])
}

// RecordAt returns the record at index from the patient's sequence.
func (s *Store) RecordAt(patient Key, index int) (MedicalRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.state.records[patient]
	if index < 0 || index >= len(seq) {
		return MedicalRecord{}, false
	}
	return seq[index], true
}

// AccessLogCount returns the length of the patient's audit sequence.
func (s *Store) AccessLogCount(patient Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.accessLogs[patient])
}

// AccessLogAt returns the audit entry at index from the patient's sequence.
func (s *Store) AccessLogAt(patient Key, index int) (AccessLogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.state.accessLogs[patient]
	if index < 0 || index >= len(seq) {
		return AccessLogEntry{}, false
	}
	return seq[index], true
}
