package core

import "patientcore/pkg/domain"

type (
	Key                = domain.Key
	Patient            = domain.Patient
	Institution        = domain.Institution
	MedicalRecord      = domain.MedicalRecord
	AccessLogEntry     = domain.AccessLogEntry
	EntityType         = domain.EntityType
	InstitutionType    = domain.InstitutionType
	RecordType         = domain.RecordType
	AccessAction       = domain.AccessAction
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Event              = domain.Event
	EventKind          = domain.EventKind
	EventSink          = domain.EventSink
)

const (
	EntityPatient       = domain.EntityPatient
	EntityInstitution   = domain.EntityInstitution
	EntityMedicalRecord = domain.EntityMedicalRecord
	EntityAccessLog     = domain.EntityAccessLog
)

const (
	ActionRead  = domain.ActionRead
	ActionWrite = domain.ActionWrite
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const SelfAdded = domain.SelfAdded
