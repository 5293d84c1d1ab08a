package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"patientcore/internal/infra/persistence/postgres/testutil"
	"patientcore/pkg/domain"
)

func withStub(t *testing.T) *testutil.StubConn {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("expected pgx driver, got %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	return conn
}

func TestPostgresStoreEnsuresStateTable(t *testing.T) {
	conn := withStub(t)
	if _, err := NewStore("", domain.NewRulesEngine()); err != nil {
		t.Fatalf("new store: %v", err)
	}
	found := false
	for _, q := range conn.Execs {
		if strings.Contains(strings.ToUpper(q), "CREATE TABLE IF NOT EXISTS STATE") {
			found = true
		}
	}
	if !found {
		t.Fatalf("state table DDL never executed: %v", conn.Execs)
	}
}

func TestPostgresStorePersistsBucketsOnCommit(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore("postgres://stub/db", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, e := tx.CreatePatient(domain.Patient{Key: "0xbob", Name: "Bob Jones"}); e != nil {
			return e
		}
		_, e := tx.AppendRecord("0xbob", domain.MedicalRecord{Type: domain.RecordImaging})
		return e
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}

	payload, ok := conn.Buckets["patients"]
	if !ok {
		t.Fatalf("patients bucket never written")
	}
	var patients map[domain.Key]domain.Patient
	if err := json.Unmarshal(payload, &patients); err != nil {
		t.Fatalf("decode patients bucket: %v", err)
	}
	if patients["0xbob"].Name != "Bob Jones" {
		t.Fatalf("patient missing from snapshot: %+v", patients)
	}
	if _, ok := conn.Buckets["records"]; !ok {
		t.Fatalf("records bucket never written")
	}
}

func TestPostgresStoreHydratesFromSnapshot(t *testing.T) {
	conn := withStub(t)
	patients, err := json.Marshal(map[domain.Key]domain.Patient{"0xalice": {Key: "0xalice", Name: "Alice Smith"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	conn.Buckets["patients"] = patients

	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, ok := store.GetPatient("0xalice")
	if !ok || got.Name != "Alice Smith" {
		t.Fatalf("snapshot not hydrated: %+v", got)
	}
}

func TestPostgresStorePingFailure(t *testing.T) {
	conn := withStub(t)
	conn.FailPing = true
	if _, err := NewStore("", nil); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping failure, got %v", err)
	}
}

func TestPostgresStorePersistFailureSurfaces(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	conn.FailCommit = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreatePatient(domain.Patient{Key: "0xbob"})
		return e
	})
	if err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit failure, got %v", err)
	}
}

func TestPostgresStoreTransactionErrorSkipsPersist(t *testing.T) {
	conn := withStub(t)
	store, err := NewStore("", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	before := len(conn.Buckets)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.AppendRecord("0xghost", domain.MedicalRecord{})
		return e
	})
	var notPatient domain.NotAPatientError
	if !errors.As(err, &notPatient) {
		t.Fatalf("expected NotAPatientError, got %v", err)
	}
	if len(conn.Buckets) != before {
		t.Fatalf("failed transaction still persisted buckets")
	}
}
