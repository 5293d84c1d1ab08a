// Command ledger-verify checks a registry snapshot for ledger consistency:
// disjoint patient and institution roles, monotone timestamps on append-only
// sequences, and access log entries that reference registered institutions.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"patientcore/internal/infra/persistence/memory"
	"patientcore/internal/infra/persistence/sqlite"
	"patientcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ledger-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		sqlitePath string
		jsonPath   string
	)
	fs.StringVar(&sqlitePath, "sqlite", "", "path to a sqlite snapshot database")
	fs.StringVar(&jsonPath, "json", "", "path to a JSON state export")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (sqlitePath == "") == (jsonPath == "") {
		fmt.Fprintln(stderr, "exactly one of -sqlite or -json is required")
		return 2
	}

	snapshot, err := loadSnapshot(sqlitePath, jsonPath)
	if err != nil {
		fmt.Fprintf(stderr, "load snapshot: %v\n", err)
		return 1
	}

	problems := verify(snapshot)
	if len(problems) == 0 {
		fmt.Fprintf(stdout, "ok: %d patients, %d institutions\n", len(snapshot.Patients), len(snapshot.Institutions))
		return 0
	}
	for _, p := range problems {
		fmt.Fprintln(stderr, p)
	}
	fmt.Fprintf(stderr, "%d problem(s) found\n", len(problems))
	return 1
}

func loadSnapshot(sqlitePath, jsonPath string) (memory.Snapshot, error) {
	if sqlitePath != "" {
		store, err := sqlite.NewStore(sqlitePath, nil)
		if err != nil {
			return memory.Snapshot{}, err
		}
		defer func() { _ = store.DB().Close() }()
		return store.ExportState(), nil
	}
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return memory.Snapshot{}, err
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(b, &snapshot); err != nil {
		return memory.Snapshot{}, err
	}
	return snapshot, nil
}

// verify runs every ledger check and returns human-readable problem lines.
func verify(s memory.Snapshot) []string {
	var problems []string
	problems = append(problems, checkRoles(s)...)
	problems = append(problems, checkRecords(s)...)
	problems = append(problems, checkAccessLogs(s)...)
	sort.Strings(problems)
	return problems
}

func checkRoles(s memory.Snapshot) []string {
	var problems []string
	for key := range s.Patients {
		if _, clash := s.Institutions[key]; clash {
			problems = append(problems, fmt.Sprintf("role conflict: %s registered as both patient and institution", key))
		}
	}
	for key := range s.Records {
		if _, ok := s.Patients[key]; !ok {
			problems = append(problems, fmt.Sprintf("orphan records: %s has medical records but no patient profile", key))
		}
	}
	for key := range s.AccessLogs {
		if _, ok := s.Patients[key]; !ok {
			problems = append(problems, fmt.Sprintf("orphan access log: %s has audit entries but no patient profile", key))
		}
	}
	return problems
}

func checkRecords(s memory.Snapshot) []string {
	var problems []string
	for key, records := range s.Records {
		patient, hasPatient := s.Patients[key]
		var prev time.Time
		for i, rec := range records {
			if rec.CreatedAt.Before(prev) {
				problems = append(problems, fmt.Sprintf("record order: %s record %d created before record %d", key, i, i-1))
			}
			prev = rec.CreatedAt
			if hasPatient && rec.CreatedAt.Before(patient.RegisteredAt) {
				problems = append(problems, fmt.Sprintf("record order: %s record %d predates registration", key, i))
			}
			if rec.AddedBy != domain.SelfAdded {
				if _, ok := s.Institutions[rec.AddedBy]; !ok {
					problems = append(problems, fmt.Sprintf("record writer: %s record %d added by unregistered key %s", key, i, rec.AddedBy))
				}
			}
		}
	}
	return problems
}

func checkAccessLogs(s memory.Snapshot) []string {
	var problems []string
	for key, entries := range s.AccessLogs {
		var prev time.Time
		for i, entry := range entries {
			if entry.Timestamp.Before(prev) {
				problems = append(problems, fmt.Sprintf("audit order: %s entry %d timestamped before entry %d", key, i, i-1))
			}
			prev = entry.Timestamp
			if entry.Action != domain.ActionRead && entry.Action != domain.ActionWrite {
				problems = append(problems, fmt.Sprintf("audit action: %s entry %d has unknown action %q", key, i, entry.Action))
			}
			inst, ok := s.Institutions[entry.Institution]
			if !ok {
				problems = append(problems, fmt.Sprintf("audit actor: %s entry %d references unregistered institution %s", key, i, entry.Institution))
				continue
			}
			if entry.InstitutionName != "" && entry.InstitutionName != inst.Name {
				problems = append(problems, fmt.Sprintf("audit actor: %s entry %d names %q but institution is %q", key, i, entry.InstitutionName, inst.Name))
			}
		}
	}
	return problems
}
