package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassifiers(t *testing.T) {
	already := AlreadyRegisteredError{Key: "0xabc"}
	notReg := NotRegisteredError{Key: "0xabc"}
	notPatient := NotAPatientError{Key: "0xdef"}
	denied := DeniedError{Requester: "0x1", Patient: "0x2", Action: ActionRead}
	oob := IndexOutOfRangeError{Entity: EntityMedicalRecord, Index: 3, Count: 2}

	if !IsAlreadyRegistered(already) || IsAlreadyRegistered(notReg) {
		t.Fatalf("IsAlreadyRegistered misclassified")
	}
	if !IsNotRegistered(notReg) || IsNotRegistered(already) {
		t.Fatalf("IsNotRegistered misclassified")
	}
	if !IsNotAPatient(notPatient) || IsNotAPatient(denied) {
		t.Fatalf("IsNotAPatient misclassified")
	}
	if !IsDenied(denied) || IsDenied(oob) {
		t.Fatalf("IsDenied misclassified")
	}
	if !IsIndexOutOfRange(oob) || IsIndexOutOfRange(denied) {
		t.Fatalf("IsIndexOutOfRange misclassified")
	}
}

func TestErrorClassifiersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", DeniedError{Requester: "0x1", Patient: "0x2", Action: ActionWrite})
	if !IsDenied(wrapped) {
		t.Fatalf("expected wrapped DeniedError to classify")
	}
	if IsDenied(errors.New("unrelated")) {
		t.Fatalf("unrelated error classified as denied")
	}
}

func TestErrorMessages(t *testing.T) {
	msg := DeniedError{Requester: "0xa", Patient: "0xb", Action: ActionRead}.Error()
	if !strings.Contains(msg, "0xa") || !strings.Contains(msg, "READ") || !strings.Contains(msg, "0xb") {
		t.Fatalf("denied message missing fields: %q", msg)
	}
	msg = IndexOutOfRangeError{Entity: EntityAccessLog, Index: 5, Count: 1}.Error()
	if !strings.Contains(msg, "5") || !strings.Contains(msg, "1") {
		t.Fatalf("index message missing bounds: %q", msg)
	}
}
