// Package domain defines the persistent entities, error taxonomy, and rule
// evaluation primitives of the patient registry core.
package domain

import "time"

// Key is the unique identity token of one patient or institution. The key
// doubles as an access capability: a patient shares it out of band with an
// institution to make their record set addressable at all.
type Key string

// SelfAdded is the sentinel actor key carried by records a patient appended to
// their own history.
const SelfAdded Key = ""

// Zero reports whether the key is the unset/sentinel value.
func (k Key) Zero() bool { return k == SelfAdded }

// EntityType identifies the type of record stored in the registry.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityPatient identifies a patient identity record.
	EntityPatient EntityType = "patient"
	// EntityInstitution identifies an institution identity record.
	EntityInstitution EntityType = "institution"
	// EntityMedicalRecord identifies one entry of a patient's record sequence.
	EntityMedicalRecord EntityType = "medical_record"
	// EntityAccessLog identifies one entry of a patient's audit sequence.
	EntityAccessLog EntityType = "access_log"
)

// InstitutionType enumerates the institution categories offered by the
// registration flow. The registry stores the value as given; KnownInstitutionType
// is available to callers that want closed-set validation.
type InstitutionType string

// Canonical institution types.
const (
	InstitutionHospital   InstitutionType = "Hospital"
	InstitutionClinic     InstitutionType = "Clinic"
	InstitutionLab        InstitutionType = "Lab"
	InstitutionPharmacy   InstitutionType = "Pharmacy"
	InstitutionDiagnostic InstitutionType = "Diagnostic Centre"
)

// KnownInstitutionType reports whether t is one of the canonical institution types.
func KnownInstitutionType(t InstitutionType) bool {
	switch t {
	case InstitutionHospital, InstitutionClinic, InstitutionLab, InstitutionPharmacy, InstitutionDiagnostic:
		return true
	}
	return false
}

// RecordType enumerates the medical record categories.
type RecordType string

// Canonical medical record types.
const (
	RecordDiagnosis    RecordType = "Diagnosis"
	RecordLabResult    RecordType = "Lab Result"
	RecordPrescription RecordType = "Prescription"
	RecordVaccination  RecordType = "Vaccination"
	RecordSurgery      RecordType = "Surgery"
	RecordImaging      RecordType = "Imaging"
	RecordAllergy      RecordType = "Allergy"
	RecordOther        RecordType = "Other"
)

// KnownRecordType reports whether t is one of the canonical record types.
func KnownRecordType(t RecordType) bool {
	switch t {
	case RecordDiagnosis, RecordLabResult, RecordPrescription, RecordVaccination,
		RecordSurgery, RecordImaging, RecordAllergy, RecordOther:
		return true
	}
	return false
}

// KnownBloodTypes lists the blood type vocabulary offered by registration
// forms. Like the other vocabularies it is advisory, not enforced.
var KnownBloodTypes = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// AccessAction distinguishes audited read and write accesses.
type AccessAction string

// Audit log actions.
const (
	ActionRead  AccessAction = "READ"
	ActionWrite AccessAction = "WRITE"
)

// Patient is an identity record created exactly once per key and immutable
// thereafter. The patient exclusively owns its record and audit sequences.
type Patient struct {
	Key          Key       `json:"key"`
	Name         string    `json:"name"`
	DateOfBirth  int64     `json:"date_of_birth"` // seconds since epoch
	BloodType    string    `json:"blood_type"`
	Gender       string    `json:"gender"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Institution is an identity record for a care provider. Its key set is
// disjoint from the patient key set; a key registers as exactly one role.
type Institution struct {
	Key            Key             `json:"key"`
	Name           string          `json:"name"`
	Type           InstitutionType `json:"type"`
	Location       string          `json:"location"`
	RegistrationID string          `json:"registration_id"`
	RegisteredAt   time.Time       `json:"registered_at"`
}

// MedicalRecord is one immutable entry of a patient's history. Entries are
// dense-indexed from zero in append order; an index once written never changes.
type MedicalRecord struct {
	CreatedAt   time.Time  `json:"created_at"`
	Type        RecordType `json:"record_type"`
	Description string     `json:"description"`
	DoctorName  string     `json:"doctor_name,omitempty"`
	Institution string     `json:"institution,omitempty"` // denormalized display name
	AddedBy     Key        `json:"added_by"`              // SelfAdded when the patient wrote it
}

// AccessLogEntry records one non-owner access to a patient's data. Self-access
// is never logged.
type AccessLogEntry struct {
	Institution     Key          `json:"institution"`
	InstitutionName string       `json:"institution_name"`
	Timestamp       time.Time    `json:"timestamp"`
	Action          AccessAction `json:"action"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	// Subject is the patient key owning the touched sequence, or the
	// registered identity's own key for identity creations.
	Subject Key
	Before  any
	After   any
}

// Action indicates the type of modification performed. The registry is
// append-only, so only creations and sequence appends exist.
type Action string

// Change actions captured by transactions.
const (
	// ActionCreate indicates an identity record was created.
	ActionCreate Action = "create"
	// ActionAppend indicates an entry was appended to an owned sequence.
	ActionAppend Action = "append"
)
