package core

import (
	"context"
	"fmt"

	"patientcore/pkg/domain"
)

// NewAppendOnlyRule returns the in-transaction rule enforcing the append-only
// discipline of record and audit sequences: the pre-transaction sequence must
// be a strict prefix of the post-transaction sequence for every append change.
func NewAppendOnlyRule() domain.Rule {
	return appendOnlyRule{}
}

type appendOnlyRule struct{}

func (appendOnlyRule) Name() string { return "append_only" }

func (appendOnlyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionAppend {
			continue
		}
		var ok bool
		switch change.Entity {
		case domain.EntityMedicalRecord:
			before, _ := change.Before.([]domain.MedicalRecord)
			after, _ := change.After.([]domain.MedicalRecord)
			ok = recordsPrefix(before, after)
		case domain.EntityAccessLog:
			before, _ := change.Before.([]domain.AccessLogEntry)
			after, _ := change.After.([]domain.AccessLogEntry)
			ok = accessPrefix(before, after)
		default:
			continue
		}
		if !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "append_only",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s sequence of %s rewrote history", change.Entity, change.Subject),
				Entity:   change.Entity,
				Subject:  change.Subject,
			})
		}
	}
	return res, nil
}

func recordsPrefix(before, after []domain.MedicalRecord) bool {
	if len(after) <= len(before) {
		return false
	}
	for i := range before {
		if before[i] != after[i] {
			return false
		}
	}
	return true
}

func accessPrefix(before, after []domain.AccessLogEntry) bool {
	if len(after) <= len(before) {
		return false
	}
	for i := range before {
		if before[i] != after[i] {
			return false
		}
	}
	return true
}
