package core

import (
	"context"
	"fmt"
	"time"

	"patientcore/internal/blob"
	"patientcore/pkg/domain"
)

// Service is the registry facade: the only entry point through which identity
// registration, record appends, and audited reads flow. Each public operation
// runs as one transaction on the backing store, so a call either completes its
// full sequence (mutations plus any paired audit entry) or leaves no trace.
type Service struct {
	store       domain.PersistentStore
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	clock       Clock
	events      EventSink
	attachments blob.Store
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder injects an operation metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer injects an operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the service clock. Intended for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEventSink injects a sink for post-commit notification events.
func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.events = sink
		}
	}
}

// WithAttachmentStore injects the blob store backing record attachments.
func WithAttachmentStore(store blob.Store) Option {
	return func(s *Service) {
		s.attachments = store
	}
}

// NewService constructs a registry facade backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	return ctx, func(err error) {
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.clock.Now()
	s.events.Publish(ctx, event)
}

// Register creates the patient identity for actor. The key must not already
// hold either role; identity is permanent once created.
func (s *Service) Register(ctx context.Context, actor Key, name string, dateOfBirth int64, bloodType, gender string) (Patient, error) {
	ctx, finish := s.begin(ctx, "register_patient")
	var created Patient
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreatePatient(Patient{
			Key:         actor,
			Name:        name,
			DateOfBirth: dateOfBirth,
			BloodType:   bloodType,
			Gender:      gender,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		s.logger.Warn("patient registration rejected", "key", actor, "error", err)
		return Patient{}, err
	}
	s.logger.Info("patient registered", "key", actor, "name", name)
	s.publish(ctx, Event{Kind: domain.EventPatientRegistered, Patient: actor, Name: name})
	return created, nil
}

// RegisterInstitution creates the institution identity for actor under the
// same one-role-per-key discipline as Register.
func (s *Service) RegisterInstitution(ctx context.Context, actor Key, name string, instType InstitutionType, location, registrationID string) (Institution, error) {
	ctx, finish := s.begin(ctx, "register_institution")
	var created Institution
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateInstitution(Institution{
			Key:            actor,
			Name:           name,
			Type:           instType,
			Location:       location,
			RegistrationID: registrationID,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		s.logger.Warn("institution registration rejected", "key", actor, "error", err)
		return Institution{}, err
	}
	s.logger.Info("institution registered", "key", actor, "name", name, "type", instType)
	s.publish(ctx, Event{Kind: domain.EventInstitutionRegistered, Institution: actor, Name: name})
	return created, nil
}

// IsRegistered reports whether actor holds a patient identity.
func (s *Service) IsRegistered(_ context.Context, actor Key) bool {
	_, ok := s.store.GetPatient(actor)
	return ok
}

// IsInstitutionRegistered reports whether actor holds an institution identity.
func (s *Service) IsInstitutionRegistered(_ context.Context, actor Key) bool {
	_, ok := s.store.GetInstitution(actor)
	return ok
}

// GetMyProfile returns the actor's own patient profile and record count.
// Self-access is silent: it never produces an audit entry.
func (s *Service) GetMyProfile(ctx context.Context, actor Key) (Patient, int, error) {
	_, finish := s.begin(ctx, "get_my_profile")
	patient, ok := s.store.GetPatient(actor)
	if !ok {
		err := domain.NotRegisteredError{Key: actor}
		finish(err)
		return Patient{}, 0, err
	}
	count := s.store.RecordCount(actor)
	finish(nil)
	return patient, count, nil
}

// GetInstitutionProfile returns the actor's own institution profile.
func (s *Service) GetInstitutionProfile(ctx context.Context, actor Key) (Institution, error) {
	_, finish := s.begin(ctx, "get_institution_profile")
	inst, ok := s.store.GetInstitution(actor)
	if !ok {
		err := domain.NotRegisteredError{Key: actor}
		finish(err)
		return Institution{}, err
	}
	finish(nil)
	return inst, nil
}

// GetInstitutionName resolves the display name of a registered institution.
func (s *Service) GetInstitutionName(ctx context.Context, actor Key) (string, error) {
	inst, err := s.GetInstitutionProfile(ctx, actor)
	if err != nil {
		return "", err
	}
	return inst.Name, nil
}

// AddMedicalRecord appends a record to the actor's own history and returns the
// assigned index. Writing to one's own history is never audited.
func (s *Service) AddMedicalRecord(ctx context.Context, actor Key, recordType RecordType, description, doctorName, institution string) (int, error) {
	ctx, finish := s.begin(ctx, "add_own_record")
	var index int
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		decision, _, policyErr := authorizeAccess(tx.Snapshot(), actor, actor, ActionWrite)
		if policyErr != nil {
			return policyErr
		}
		if decision != DecisionSelf {
			return domain.DeniedError{Requester: actor, Patient: actor, Action: ActionWrite}
		}
		var txErr error
		index, txErr = tx.AppendRecord(actor, MedicalRecord{
			Type:        recordType,
			Description: description,
			DoctorName:  doctorName,
			Institution: institution,
			AddedBy:     SelfAdded,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		return 0, err
	}
	s.logger.Info("record added", "patient", actor, "index", index, "type", recordType)
	s.publish(ctx, Event{Kind: domain.EventRecordAdded, Patient: actor, RecordIndex: index})
	return index, nil
}

// AddRecordForPatient appends a record to the given patient's history on
// behalf of the acting institution, and audit-logs the write in the same
// transaction. Both the record and the audit entry commit, or neither does.
func (s *Service) AddRecordForPatient(ctx context.Context, actor, patient Key, recordType RecordType, description, doctorName string) (int, error) {
	ctx, finish := s.begin(ctx, "add_record_for_patient")
	var index int
	var instName string
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		decision, inst, policyErr := authorizeAccess(tx.Snapshot(), actor, patient, ActionWrite)
		if policyErr != nil {
			return policyErr
		}
		if decision != DecisionAuthorized {
			return domain.DeniedError{Requester: actor, Patient: patient, Action: ActionWrite}
		}
		instName = inst.Name
		var txErr error
		index, txErr = tx.AppendRecord(patient, MedicalRecord{
			Type:        recordType,
			Description: description,
			DoctorName:  doctorName,
			Institution: inst.Name,
			AddedBy:     actor,
		})
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.AppendAccessEntry(patient, AccessLogEntry{
			Institution:     actor,
			InstitutionName: inst.Name,
			Action:          ActionWrite,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		s.logger.Warn("record write denied", "institution", actor, "patient", patient, "error", err)
		return 0, err
	}
	s.logger.Info("record added for patient", "institution", actor, "patient", patient, "index", index)
	s.publish(ctx, Event{Kind: domain.EventRecordAdded, Patient: patient, Institution: actor, Name: instName, RecordIndex: index})
	s.publish(ctx, Event{Kind: domain.EventInstitutionAccess, Patient: patient, Institution: actor, Name: instName, Action: ActionWrite})
	return index, nil
}

// GetMedicalRecord returns the record at index from the actor's own history.
func (s *Service) GetMedicalRecord(ctx context.Context, actor Key, index int) (MedicalRecord, error) {
	_, finish := s.begin(ctx, "get_own_record")
	record, err := s.ownRecordAt(actor, index)
	finish(err)
	return record, err
}

func (s *Service) ownRecordAt(actor Key, index int) (MedicalRecord, error) {
	if _, ok := s.store.GetPatient(actor); !ok {
		return MedicalRecord{}, domain.NotRegisteredError{Key: actor}
	}
	record, ok := s.store.RecordAt(actor, index)
	if !ok {
		return MedicalRecord{}, domain.IndexOutOfRangeError{
			Entity: EntityMedicalRecord,
			Index:  index,
			Count:  s.store.RecordCount(actor),
		}
	}
	return record, nil
}

// GetRecordCount returns the length of the actor's own record sequence.
func (s *Service) GetRecordCount(_ context.Context, actor Key) (int, error) {
	if _, ok := s.store.GetPatient(actor); !ok {
		return 0, domain.NotRegisteredError{Key: actor}
	}
	return s.store.RecordCount(actor), nil
}

// GetPatientBasicInfo returns a patient's profile and record count to an
// authorized institution. The read is not side-effect-free: an audit entry
// with action READ commits in the same transaction that observes the data, so
// the patient's log and the returned result can never disagree.
func (s *Service) GetPatientBasicInfo(ctx context.Context, actor, patient Key) (Patient, int, error) {
	ctx, finish := s.begin(ctx, "get_patient_basic_info")
	var (
		profile  Patient
		count    int
		instName string
	)
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		decision, inst, policyErr := authorizeAccess(view, actor, patient, ActionRead)
		if policyErr != nil {
			return policyErr
		}
		if decision != DecisionAuthorized {
			return domain.DeniedError{Requester: actor, Patient: patient, Action: ActionRead}
		}
		profile, _ = view.FindPatient(patient)
		count = len(view.Records(patient))
		instName = inst.Name
		_, txErr := tx.AppendAccessEntry(patient, AccessLogEntry{
			Institution:     actor,
			InstitutionName: inst.Name,
			Action:          ActionRead,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		s.logger.Warn("patient lookup denied", "institution", actor, "patient", patient, "error", err)
		return Patient{}, 0, err
	}
	s.publish(ctx, Event{Kind: domain.EventInstitutionAccess, Patient: patient, Institution: actor, Name: instName, Action: ActionRead})
	return profile, count, nil
}

// GetPatientRecord returns the record at index from the given patient's
// history to an authorized institution, audit-logging the read in the same
// transaction. An out-of-range index fails before any audit entry is written.
func (s *Service) GetPatientRecord(ctx context.Context, actor, patient Key, index int) (MedicalRecord, error) {
	ctx, finish := s.begin(ctx, "get_patient_record")
	var (
		record   MedicalRecord
		instName string
	)
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		view := tx.Snapshot()
		decision, inst, policyErr := authorizeAccess(view, actor, patient, ActionRead)
		if policyErr != nil {
			return policyErr
		}
		if decision != DecisionAuthorized {
			return domain.DeniedError{Requester: actor, Patient: patient, Action: ActionRead}
		}
		records := view.Records(patient)
		if index < 0 || index >= len(records) {
			return domain.IndexOutOfRangeError{Entity: EntityMedicalRecord, Index: index, Count: len(records)}
		}
		record = records[index]
		instName = inst.Name
		_, txErr := tx.AppendAccessEntry(patient, AccessLogEntry{
			Institution:     actor,
			InstitutionName: inst.Name,
			Action:          ActionRead,
		})
		return txErr
	})
	finish(err)
	if err != nil {
		return MedicalRecord{}, err
	}
	s.publish(ctx, Event{Kind: domain.EventInstitutionAccess, Patient: patient, Institution: actor, Name: instName, Action: ActionRead})
	return record, nil
}

// GetAccessLog returns the audit entry at index from the actor's own log.
func (s *Service) GetAccessLog(ctx context.Context, actor Key, index int) (AccessLogEntry, error) {
	_, finish := s.begin(ctx, "get_access_log")
	var entry AccessLogEntry
	err := func() error {
		if _, ok := s.store.GetPatient(actor); !ok {
			return domain.NotRegisteredError{Key: actor}
		}
		var ok bool
		entry, ok = s.store.AccessLogAt(actor, index)
		if !ok {
			return domain.IndexOutOfRangeError{
				Entity: EntityAccessLog,
				Index:  index,
				Count:  s.store.AccessLogCount(actor),
			}
		}
		return nil
	}()
	finish(err)
	return entry, err
}

// GetAccessLogCount returns the length of the actor's own audit sequence.
func (s *Service) GetAccessLogCount(_ context.Context, actor Key) (int, error) {
	if _, ok := s.store.GetPatient(actor); !ok {
		return 0, domain.NotRegisteredError{Key: actor}
	}
	return s.store.AccessLogCount(actor), nil
}

// ErrNoAttachmentStore is returned by attachment operations when the service
// was built without an attachment store.
var ErrNoAttachmentStore = fmt.Errorf("no attachment store configured")

// attachmentKey maps a record attachment to its blob key.
func attachmentKey(patient Key, index int, name string) string {
	return fmt.Sprintf("patients/%s/records/%d/%s", patient, index, name)
}
