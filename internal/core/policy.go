package core

import "patientcore/pkg/domain"

// AccessDecision classifies a (requester, patient) pair for one access.
type AccessDecision int

const (
	// DecisionDeny rejects the access; the returned error carries the reason.
	DecisionDeny AccessDecision = iota
	// DecisionSelf permits a registered patient acting on themself. Never audited.
	DecisionSelf
	// DecisionAuthorized permits a registered institution addressing a
	// registered patient by key. Always audited.
	DecisionAuthorized
)

// authorizeAccess decides whether requester may perform action on the
// patient's data, given a transactional view of the registry.
//
// The patient's identity key doubles as a capability token: any registered
// institution that holds the key may address the record set. The registry
// keeps no per-institution grant list; sharing the key out of band is the
// consent artifact.
func authorizeAccess(view domain.TransactionView, requester, patient Key, action AccessAction) (AccessDecision, Institution, error) {
	if requester == patient {
		if _, ok := view.FindPatient(requester); !ok {
			return DecisionDeny, Institution{}, domain.NotRegisteredError{Key: requester}
		}
		return DecisionSelf, Institution{}, nil
	}
	inst, ok := view.FindInstitution(requester)
	if !ok {
		// A registered patient reaching for someone else's records is a
		// straight denial; an unknown key is a registration problem.
		if _, isPatient := view.FindPatient(requester); isPatient {
			return DecisionDeny, Institution{}, domain.DeniedError{Requester: requester, Patient: patient, Action: action}
		}
		return DecisionDeny, Institution{}, domain.NotRegisteredError{Key: requester}
	}
	if _, ok := view.FindPatient(patient); !ok {
		return DecisionDeny, Institution{}, domain.NotAPatientError{Key: patient}
	}
	_ = action // variant A grants read and write alike once the pair resolves
	return DecisionAuthorized, inst, nil
}
