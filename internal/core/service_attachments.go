package core

import (
	"context"
	"fmt"
	"io"

	"patientcore/internal/blob"
	"patientcore/pkg/domain"
)

// PutRecordAttachment stores a document (imaging, lab report) against an
// existing record of the patient's history. Attachments are create-only:
// the blob store rejects overwrites, matching the registry's append-only
// philosophy. A non-owner put is audit-logged as a WRITE.
func (s *Service) PutRecordAttachment(ctx context.Context, actor, patient Key, index int, name string, r io.Reader, contentType string) (blob.Info, error) {
	ctx, finish := s.begin(ctx, "put_record_attachment")
	info, err := s.putRecordAttachment(ctx, actor, patient, index, name, r, contentType)
	finish(err)
	if err != nil {
		return blob.Info{}, err
	}
	s.logger.Info("attachment stored", "patient", patient, "index", index, "key", info.Key)
	return info, nil
}

func (s *Service) putRecordAttachment(ctx context.Context, actor, patient Key, index int, name string, r io.Reader, contentType string) (blob.Info, error) {
	if s.attachments == nil {
		return blob.Info{}, ErrNoAttachmentStore
	}
	decision, inst, err := s.authorizeAttachment(ctx, actor, patient, index)
	if err != nil {
		return blob.Info{}, err
	}
	info, err := s.attachments.Put(ctx, attachmentKey(patient, index, name), r, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"added_by": string(actor)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store attachment: %w", err)
	}
	if decision == DecisionAuthorized {
		if err := s.auditAttachmentAccess(ctx, actor, patient, inst.Name, ActionWrite); err != nil {
			// The write must not stand unlogged; undo the stored blob.
			_, _ = s.attachments.Delete(ctx, info.Key)
			return blob.Info{}, err
		}
	}
	return info, nil
}

// OpenRecordAttachment returns metadata and a reader for a stored record
// attachment. A non-owner open is audit-logged as a READ before the payload
// is handed out.
func (s *Service) OpenRecordAttachment(ctx context.Context, actor, patient Key, index int, name string) (blob.Info, io.ReadCloser, error) {
	ctx, finish := s.begin(ctx, "open_record_attachment")
	info, rc, err := s.openRecordAttachment(ctx, actor, patient, index, name)
	finish(err)
	return info, rc, err
}

func (s *Service) openRecordAttachment(ctx context.Context, actor, patient Key, index int, name string) (blob.Info, io.ReadCloser, error) {
	if s.attachments == nil {
		return blob.Info{}, nil, ErrNoAttachmentStore
	}
	decision, inst, err := s.authorizeAttachment(ctx, actor, patient, index)
	if err != nil {
		return blob.Info{}, nil, err
	}
	key := attachmentKey(patient, index, name)
	// Confirm existence before logging: only successful accesses are audited.
	if _, err := s.attachments.Head(ctx, key); err != nil {
		return blob.Info{}, nil, fmt.Errorf("attachment %s: %w", key, err)
	}
	if decision == DecisionAuthorized {
		if err := s.auditAttachmentAccess(ctx, actor, patient, inst.Name, ActionRead); err != nil {
			return blob.Info{}, nil, err
		}
	}
	info, rc, err := s.attachments.Get(ctx, key)
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("open attachment: %w", err)
	}
	return info, rc, nil
}

// authorizeAttachment applies the access policy and verifies the record index
// exists, without mutating anything.
func (s *Service) authorizeAttachment(ctx context.Context, actor, patient Key, index int) (AccessDecision, Institution, error) {
	var (
		decision AccessDecision
		inst     Institution
	)
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		var policyErr error
		decision, inst, policyErr = authorizeAccess(view, actor, patient, ActionWrite)
		if policyErr != nil {
			return policyErr
		}
		if decision == DecisionDeny {
			return domain.DeniedError{Requester: actor, Patient: patient, Action: ActionWrite}
		}
		records := view.Records(patient)
		if index < 0 || index >= len(records) {
			return domain.IndexOutOfRangeError{Entity: EntityMedicalRecord, Index: index, Count: len(records)}
		}
		return nil
	})
	if err != nil {
		return DecisionDeny, Institution{}, err
	}
	return decision, inst, nil
}

func (s *Service) auditAttachmentAccess(ctx context.Context, actor, patient Key, instName string, action AccessAction) error {
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, txErr := tx.AppendAccessEntry(patient, AccessLogEntry{
			Institution:     actor,
			InstitutionName: instName,
			Action:          action,
		})
		return txErr
	})
	if err != nil {
		return err
	}
	s.publish(ctx, Event{Kind: domain.EventInstitutionAccess, Patient: patient, Institution: actor, Name: instName, Action: action})
	return nil
}
