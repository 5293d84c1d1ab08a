package domain

import (
	"context"
	"time"
)

// EventKind identifies a notification event emitted after a committed mutation.
type EventKind string

// Notification event kinds. Events are observational only; nothing in the
// registry core reads them back.
const (
	EventPatientRegistered     EventKind = "patient_registered"
	EventInstitutionRegistered EventKind = "institution_registered"
	EventRecordAdded           EventKind = "record_added"
	EventInstitutionAccess     EventKind = "institution_access"
)

// Event carries the key fields of a committed mutation for external observers
// (indexers, UIs).
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	// Patient is the owning patient key for record/access events, or the
	// registered key for patient_registered.
	Patient Key `json:"patient,omitempty"`
	// Institution is the acting institution key, when one was involved.
	Institution Key    `json:"institution,omitempty"`
	Name        string `json:"name,omitempty"`
	// RecordIndex is the assigned index for record_added events.
	RecordIndex int          `json:"record_index,omitempty"`
	Action      AccessAction `json:"action,omitempty"`
}

// EventSink receives notification events after commit. Implementations must
// not block for long; the facade publishes synchronously.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}
