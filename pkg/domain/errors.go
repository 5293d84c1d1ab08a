package domain

import (
	"errors"
	"fmt"
)

// AlreadyRegisteredError reports a duplicate identity registration attempt. The
// key may hold either role; one key registers as exactly one identity, forever.
type AlreadyRegisteredError struct {
	Key Key
}

func (e AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("already registered: %s", e.Key)
}

// NotRegisteredError reports that an actor holds no identity where one is required.
type NotRegisteredError struct {
	Key Key
}

func (e NotRegisteredError) Error() string {
	return fmt.Sprintf("not registered: %s", e.Key)
}

// NotAPatientError reports that a supplied key does not resolve to a registered
// patient.
type NotAPatientError struct {
	Key Key
}

func (e NotAPatientError) Error() string {
	return fmt.Sprintf("not a patient: %s", e.Key)
}

// DeniedError reports an access-policy rejection for a requester/patient pair.
type DeniedError struct {
	Requester Key
	Patient   Key
	Action    AccessAction
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s may not %s records of %s", e.Requester, e.Action, e.Patient)
}

// IndexOutOfRangeError reports a record or audit index at or beyond the
// sequence length.
type IndexOutOfRangeError struct {
	Entity EntityType
	Index  int
	Count  int
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s index %d out of range (count %d)", e.Entity, e.Index, e.Count)
}

// IsAlreadyRegistered reports whether err is an AlreadyRegisteredError.
func IsAlreadyRegistered(err error) bool {
	var target AlreadyRegisteredError
	return errors.As(err, &target)
}

// IsNotRegistered reports whether err is a NotRegisteredError.
func IsNotRegistered(err error) bool {
	var target NotRegisteredError
	return errors.As(err, &target)
}

// IsNotAPatient reports whether err is a NotAPatientError.
func IsNotAPatient(err error) bool {
	var target NotAPatientError
	return errors.As(err, &target)
}

// IsDenied reports whether err is a DeniedError.
func IsDenied(err error) bool {
	var target DeniedError
	return errors.As(err, &target)
}

// IsIndexOutOfRange reports whether err is an IndexOutOfRangeError.
func IsIndexOutOfRange(err error) bool {
	var target IndexOutOfRangeError
	return errors.As(err, &target)
}
