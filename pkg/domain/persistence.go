package domain

import "context"

// Transaction exposes the registry operations a persistence implementation
// must support within an atomic scope. The registry is append-only end to end;
// no update or delete operation exists at this boundary.
type Transaction interface {
	Snapshot() TransactionView
	CreatePatient(Patient) (Patient, error)
	CreateInstitution(Institution) (Institution, error)
	// AppendRecord adds a record at the next free index of the patient's
	// sequence and returns the assigned index.
	AppendRecord(patient Key, record MedicalRecord) (int, error)
	// AppendAccessEntry adds an audit entry at the next free index of the
	// patient's audit sequence and returns the assigned index.
	AppendAccessEntry(patient Key, entry AccessLogEntry) (int, error)
	FindPatient(key Key) (Patient, bool)
	FindInstitution(key Key) (Institution, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListPatients() []Patient
	ListInstitutions() []Institution
	FindPatient(key Key) (Patient, bool)
	FindInstitution(key Key) (Institution, bool)
	Records(patient Key) []MedicalRecord
	AccessLog(patient Key) []AccessLogEntry
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities the registry facade uses directly.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetPatient(key Key) (Patient, bool)
	GetInstitution(key Key) (Institution, bool)
	ListPatients() []Patient
	ListInstitutions() []Institution
	RecordCount(patient Key) int
	RecordAt(patient Key, index int) (MedicalRecord, bool)
	AccessLogCount(patient Key) int
	AccessLogAt(patient Key, index int) (AccessLogEntry, bool)
}
