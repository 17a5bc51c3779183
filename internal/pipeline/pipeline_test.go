package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"retailetl/internal/domain"
	"retailetl/internal/pipeline"
)

// ─────────────────────────────────────────────────────────────
// Pipeline batch tests
// Runs real codecs over temp directories; the database sinks are
// in-memory fakes so no external services are required.
// ─────────────────────────────────────────────────────────────

type fakeRelational struct {
	tables map[string]*domain.RecordSet
	fail   map[string]error
}

func (f *fakeRelational) Replace(_ context.Context, table string, rs *domain.RecordSet) error {
	if err := f.fail[table]; err != nil {
		return err
	}
	if f.tables == nil {
		f.tables = map[string]*domain.RecordSet{}
	}
	f.tables[table] = rs
	return nil
}

type fakeDocument struct {
	collections map[string]*domain.RecordSet
	fail        map[string]error
}

func (f *fakeDocument) Replace(_ context.Context, collection string, rs *domain.RecordSet) error {
	if err := f.fail[collection]; err != nil {
		return err
	}
	if f.collections == nil {
		f.collections = map[string]*domain.RecordSet{}
	}
	f.collections[collection] = rs
	return nil
}

type fixture struct {
	p   *pipeline.Pipeline
	rel *fakeRelational
	doc *fakeDocument
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatalf("mkdir raw: %v", err)
	}

	rel := &fakeRelational{}
	doc := &fakeDocument{}
	return &fixture{
		p: &pipeline.Pipeline{
			Paths: pipeline.Paths{
				Raw:     raw,
				Cleaned: filepath.Join(root, "cleaned"),
				JSON:    filepath.Join(root, "json"),
			},
			Relational: rel,
			Document:   doc,
		},
		rel: rel,
		doc: doc,
	}
}

func (f *fixture) writeRaw(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.p.Paths.Raw, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write raw file: %v", err)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "sales_dirty.csv", "Order ID,Total Price\n1,9.99\n2,null\n")
	f.writeRaw(t, "users_dirty.json", `[{"User Name":"ana","Age":30}]`)

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Files) != 2 {
		t.Fatalf("processed %d files, want 2", len(result.Files))
	}

	// CSV format runs before JSON, so order is fixed.
	if result.Files[0].Identifier != "sales_cleaned" || result.Files[1].Identifier != "users_cleaned" {
		t.Errorf("identifiers = %s, %s", result.Files[0].Identifier, result.Files[1].Identifier)
	}
	for _, fr := range result.Files {
		if fr.Status != pipeline.StatusLoaded {
			t.Errorf("%s status = %s, want loaded (errors: %v)", fr.Path, fr.Status, fr.Errors)
		}
	}

	staged, ok := f.rel.tables["staging_sales_cleaned"]
	if !ok {
		t.Fatal("staging_sales_cleaned not written")
	}
	if !reflect.DeepEqual(staged.FieldNames(), []string{"order_id", "total_price"}) {
		t.Errorf("staged fields = %v", staged.FieldNames())
	}
	if staged.Records[1]["total_price"] != nil {
		t.Errorf("null sentinel survived cleaning: %#v", staged.Records[1]["total_price"])
	}
	// The "null" cell makes total_price read as mixed text; the staged
	// column must still be numeric once the sentinel is cleaned away.
	if got := staged.Fields[1].Type; got != domain.FieldNumber {
		t.Errorf("total_price type = %q, want %q", got, domain.FieldNumber)
	}

	docs, ok := f.doc.collections["users_cleaned"]
	if !ok {
		t.Fatal("users_cleaned collection not written")
	}
	if docs.Records[0]["user_name"] != "ana" || docs.Records[0]["age"] != float64(30) {
		t.Errorf("cleaned document = %#v", docs.Records[0])
	}

	data, err := os.ReadFile(filepath.Join(f.p.Paths.Cleaned, "sales_cleaned.csv"))
	if err != nil {
		t.Fatalf("cleaned csv missing: %v", err)
	}
	if got, want := string(data), "order_id,total_price\n1,9.99\n2,\n"; got != want {
		t.Errorf("cleaned csv = %q, want %q", got, want)
	}
	if _, err := os.Stat(filepath.Join(f.p.Paths.JSON, "users_cleaned.json")); err != nil {
		t.Errorf("cleaned json missing: %v", err)
	}
}

func TestRun_SkipsUnreadableFile(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "bad_dirty.json", `{"broken":`)
	f.writeRaw(t, "good_dirty.csv", "a\n1\n")

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	loaded, partial, skipped := result.Counts()
	if loaded != 1 || partial != 0 || skipped != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1 loaded, 0 partial, 1 skipped", loaded, partial, skipped)
	}
	if _, ok := f.rel.tables["staging_good_cleaned"]; !ok {
		t.Error("good file not loaded after bad file was skipped")
	}
	if len(f.doc.collections) != 0 {
		t.Errorf("skipped file reached the document sink: %v", f.doc.collections)
	}
}

func TestRun_SinkFailureStillWritesFile(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "sales_dirty.csv", "a,b\n1,2\n")
	f.rel.fail = map[string]error{"staging_sales_cleaned": errors.New("table locked")}

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	fr := result.Files[0]
	if fr.Status != pipeline.StatusPartial {
		t.Errorf("status = %s, want partial", fr.Status)
	}
	if len(fr.Errors) != 1 {
		t.Errorf("errors = %v, want exactly the sink failure", fr.Errors)
	}
	if _, err := os.Stat(filepath.Join(f.p.Paths.Cleaned, "sales_cleaned.csv")); err != nil {
		t.Errorf("cleaned file not written after sink failure: %v", err)
	}
}

func TestRun_DottedStemKeepsFileName(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "export.2024_dirty.csv", "a\n1\n")

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Table name truncates at the first dot, the file name keeps it.
	if result.Files[0].Identifier != "export" {
		t.Errorf("identifier = %s, want export", result.Files[0].Identifier)
	}
	if _, ok := f.rel.tables["staging_export"]; !ok {
		t.Errorf("tables = %v, want staging_export", f.rel.tables)
	}
	if _, err := os.Stat(filepath.Join(f.p.Paths.Cleaned, "export.2024_cleaned.csv")); err != nil {
		t.Errorf("cleaned file name mangled: %v", err)
	}
}

func TestRun_RepeatRunReplacesPriorLoad(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "sales_dirty.csv", "a\n1\n2\n")
	if _, err := f.p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	f.writeRaw(t, "sales_dirty.csv", "a\n9\n")
	if _, err := f.p.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	staged := f.rel.tables["staging_sales_cleaned"]
	if staged == nil || staged.Len() != 1 {
		t.Fatalf("staged set = %+v, want only the second run's row", staged)
	}
	if staged.Records[0]["a"] != float64(9) {
		t.Errorf("staged value = %#v, want 9", staged.Records[0]["a"])
	}

	data, err := os.ReadFile(filepath.Join(f.p.Paths.Cleaned, "sales_cleaned.csv"))
	if err != nil {
		t.Fatalf("cleaned csv missing: %v", err)
	}
	if got, want := string(data), "a\n9\n"; got != want {
		t.Errorf("cleaned csv after rerun = %q, want %q", got, want)
	}
}

func TestRun_EmptyJSONStillReplaces(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "empty_dirty.json", `[]`)

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Files[0].Rows != 0 || result.Files[0].Status != pipeline.StatusLoaded {
		t.Errorf("empty file result = %+v", result.Files[0])
	}
	rs, ok := f.doc.collections["empty_cleaned"]
	if !ok {
		t.Fatal("empty set did not reach the document sink (replace must still clear)")
	}
	if rs.Len() != 0 {
		t.Errorf("rows = %d, want 0", rs.Len())
	}
}

func TestRun_EmptyRawDir(t *testing.T) {
	f := newFixture(t)

	result, err := f.p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Files) != 0 {
		t.Errorf("files = %v, want none", result.Files)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.writeRaw(t, "sales_dirty.csv", "a\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(result.Files) != 0 {
		t.Errorf("files processed after cancel: %v", result.Files)
	}
	if result.Duration <= 0 {
		t.Errorf("cancelled run duration = %v, want > 0", result.Duration)
	}
}
