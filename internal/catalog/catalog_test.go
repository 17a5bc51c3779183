package catalog_test

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"retailetl/internal/catalog"
	"retailetl/internal/domain"
	"retailetl/internal/pipeline"
)

// ─────────────────────────────────────────────────────────────
// Run catalog tests
// Uses a throwaway SQLite file per test; no external services.
// ─────────────────────────────────────────────────────────────

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.New(filepath.Join(t.TempDir(), "state", "catalog.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(started time.Time) *pipeline.RunResult {
	return &pipeline.RunResult{
		Started:  started,
		Duration: 2 * time.Second,
		Files: []pipeline.FileResult{
			{
				Path:       "data/raw/sales_dirty.csv",
				Format:     domain.FormatCSV,
				Identifier: "sales_cleaned",
				Rows:       10,
				Status:     pipeline.StatusLoaded,
			},
			{
				Path:       "data/raw/users_dirty.json",
				Format:     domain.FormatJSON,
				Identifier: "users_cleaned",
				Rows:       3,
				Status:     pipeline.StatusPartial,
				Errors:     []string{"write users_cleaned to mongo: connection reset"},
			},
			{
				Path:   "data/raw/bad_dirty.csv",
				Format: domain.FormatCSV,
				Status: pipeline.StatusSkipped,
				Errors: []string{"read data/raw/bad_dirty.csv: parse csv"},
			},
		},
	}
}

func TestRecordRun_CountsAndFiles(t *testing.T) {
	s := newStore(t)

	run, err := s.RecordRun("manual", sampleResult(time.Now()))
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run has no ID")
	}
	if run.Loaded != 1 || run.Partial != 1 || run.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", run.Loaded, run.Partial, run.Skipped)
	}

	files, err := s.ListRunFiles(run.ID)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %d, want 3", len(files))
	}
	if files[0].Identifier != "sales_cleaned" || files[0].Rows != 10 {
		t.Errorf("first file = %+v", files[0])
	}
	if !reflect.DeepEqual(files[1].Errors, []string{"write users_cleaned to mongo: connection reset"}) {
		t.Errorf("errors did not round-trip: %v", files[1].Errors)
	}
	if files[2].Status != string(pipeline.StatusSkipped) {
		t.Errorf("skipped status = %s", files[2].Status)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newStore(t)

	base := time.Now().Add(-time.Hour)
	old, err := s.RecordRun("manual", sampleResult(base))
	if err != nil {
		t.Fatalf("RecordRun old: %v", err)
	}
	recent, err := s.RecordRun("schedule", sampleResult(base.Add(30*time.Minute)))
	if err != nil {
		t.Fatalf("RecordRun recent: %v", err)
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != recent.ID || runs[1].ID != old.ID {
		t.Errorf("order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}
	if runs[0].Trigger != "schedule" {
		t.Errorf("trigger = %s, want schedule", runs[0].Trigger)
	}
}

func TestListRuns_Limit(t *testing.T) {
	s := newStore(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := s.RecordRun("manual", sampleResult(base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want limit of 2", len(runs))
	}
}

func TestRecordRun_EmptyBatch(t *testing.T) {
	s := newStore(t)

	run, err := s.RecordRun("file_watch", &pipeline.RunResult{Started: time.Now()})
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	files, err := s.ListRunFiles(run.ID)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}
