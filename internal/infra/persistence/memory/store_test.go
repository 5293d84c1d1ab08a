package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"patientcore/pkg/domain"
)

func TestStoreCreateAndReadBack(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreatePatient(Patient{Key: "0xalice", Name: "Alice Smith", BloodType: "A+"}); err != nil {
			return err
		}
		_, err := tx.CreateInstitution(Institution{Key: "0xhospital", Name: "City Hospital", Type: domain.InstitutionHospital})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	patient, ok := store.GetPatient("0xalice")
	if !ok || patient.Name != "Alice Smith" {
		t.Fatalf("patient not committed: %+v", patient)
	}
	if !patient.RegisteredAt.Equal(fixed) {
		t.Fatalf("expected RegisteredAt %v, got %v", fixed, patient.RegisteredAt)
	}
	if _, ok := store.GetInstitution("0xhospital"); !ok {
		t.Fatalf("institution not committed")
	}
	if got := len(store.ListPatients()); got != 1 {
		t.Fatalf("expected 1 patient, got %d", got)
	}
}

func TestStoreDuplicateKeyRejectedAcrossRoles(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xkey"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xkey"})
		return err
	})
	if !domain.IsAlreadyRegistered(err) {
		t.Fatalf("expected AlreadyRegisteredError, got %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateInstitution(Institution{Key: "0xkey"})
		return err
	})
	if !domain.IsAlreadyRegistered(err) {
		t.Fatalf("expected cross-role rejection, got %v", err)
	}
}

func TestStoreAppendAssignsDenseIndices(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xbob"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for want := 0; want < 3; want++ {
		var got int
		if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			got, err = tx.AppendRecord("0xbob", MedicalRecord{Type: domain.RecordDiagnosis})
			return err
		}); err != nil {
			t.Fatalf("append %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected index %d, got %d", want, got)
		}
	}
	if got := store.RecordCount("0xbob"); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
	if _, ok := store.RecordAt("0xbob", 3); ok {
		t.Fatalf("index past end should not resolve")
	}
}

func TestStoreAppendToUnknownPatientFails(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.AppendRecord("0xghost", MedicalRecord{})
		return err
	})
	if !domain.IsNotAPatient(err) {
		t.Fatalf("expected NotAPatientError, got %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.AppendAccessEntry("0xghost", AccessLogEntry{})
		return err
	})
	if !domain.IsNotAPatient(err) {
		t.Fatalf("expected NotAPatientError for audit append, got %v", err)
	}
}

func TestStoreFailedTransactionLeavesNoTrace(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xbob"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.AppendRecord("0xbob", MedicalRecord{Type: domain.RecordLabResult}); err != nil {
			return err
		}
		// second append targets an unknown patient; the whole set must roll back
		_, err := tx.AppendAccessEntry("0xghost", AccessLogEntry{})
		return err
	})
	if err == nil {
		t.Fatalf("expected transaction failure")
	}
	if got := store.RecordCount("0xbob"); got != 0 {
		t.Fatalf("partial commit leaked: %d records", got)
	}
}

type blockAppendsRule struct{}

func (blockAppendsRule) Name() string { return "block_appends" }

func (blockAppendsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, ch := range changes {
		if ch.Action == domain.ActionAppend {
			res.Violations = append(res.Violations, domain.Violation{Rule: "block_appends", Severity: domain.SeverityBlock, Subject: ch.Subject})
		}
	}
	return res, nil
}

func TestStoreBlockingRuleDiscardsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAppendsRule{})
	store := NewStore(engine)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xbob"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.AppendRecord("0xbob", MedicalRecord{})
		return err
	})
	if err == nil || !res.HasBlocking() {
		t.Fatalf("expected blocking result, got res=%+v err=%v", res, err)
	}
	violation, ok := err.(domain.RuleViolationError)
	if !ok {
		t.Fatalf("expected RuleViolationError, got %T", err)
	}
	if len(violation.Result.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violation.Result.Violations))
	}
	if got := store.RecordCount("0xbob"); got != 0 {
		t.Fatalf("blocked transaction committed anyway: %d records", got)
	}
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreatePatient(Patient{Key: "0xbob", Name: "Bob Jones"}); err != nil {
			return err
		}
		if _, err := tx.CreateInstitution(Institution{Key: "0xlab", Name: "Metro Lab"}); err != nil {
			return err
		}
		if _, err := tx.AppendRecord("0xbob", MedicalRecord{Type: domain.RecordVaccination, AddedBy: "0xlab"}); err != nil {
			return err
		}
		_, err := tx.AppendAccessEntry("0xbob", AccessLogEntry{Institution: "0xlab", Action: domain.ActionWrite})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	raw, err := json.Marshal(store.ExportState())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(snapshot)
	if got := restored.RecordCount("0xbob"); got != 1 {
		t.Fatalf("expected 1 record after restore, got %d", got)
	}
	entry, ok := restored.AccessLogAt("0xbob", 0)
	if !ok || entry.Institution != "0xlab" || entry.Action != domain.ActionWrite {
		t.Fatalf("audit entry lost in round trip: %+v", entry)
	}
}

func TestStoreImportStateMigratesNilBuckets(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{})
	if got := store.RecordCount("0xanyone"); got != 0 {
		t.Fatalf("expected empty store, got %d records", got)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreatePatient(Patient{Key: "0xnew"})
		return err
	}); err != nil {
		t.Fatalf("store unusable after empty import: %v", err)
	}
}

func TestStoreViewSeesCommittedStateOnly(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreatePatient(Patient{Key: "0xbob"}); err != nil {
			return err
		}
		view := tx.Snapshot()
		if _, ok := view.FindPatient("0xbob"); !ok {
			t.Fatalf("transaction view missing uncommitted patient")
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindPatient("0xbob"); !ok {
			t.Fatalf("view missing committed patient")
		}
		if recs := view.Records("0xbob"); len(recs) != 0 {
			t.Fatalf("unexpected records: %d", len(recs))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
