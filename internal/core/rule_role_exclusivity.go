package core

import (
	"context"
	"fmt"

	"patientcore/pkg/domain"
)

// NewRoleExclusivityRule returns the in-transaction rule enforcing that an
// identity key holds at most one of the patient or institution roles.
func NewRoleExclusivityRule() domain.Rule {
	return roleExclusivityRule{}
}

type roleExclusivityRule struct{}

func (roleExclusivityRule) Name() string { return "role_exclusivity" }

func (roleExclusivityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, patient := range view.ListPatients() {
		if _, ok := view.FindInstitution(patient.Key); ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "role_exclusivity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("key %s registered as both patient and institution", patient.Key),
				Entity:   domain.EntityPatient,
				Subject:  patient.Key,
			})
		}
	}
	return res, nil
}
