package format

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"retailetl/internal/domain"
)

// ── JSON Codec ──────────────────────────────────────────────
// Reads raw JSON files and writes cleaned, pretty-printed ones.
// Two layouts are accepted: an array of objects (one per record),
// or an object of equal-length column arrays.

type jsonCodec struct{}

func init() { Register(&jsonCodec{}) }

func (c *jsonCodec) Format() domain.Format { return domain.FormatJSON }

func (c *jsonCodec) Extension() string { return ".json" }

func (c *jsonCodec) Read(path string) (*domain.RecordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("parse json: %w", err)}
	}

	records, err := toRecords(raw)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	names := fieldNames(records)
	return &domain.RecordSet{
		Fields:  domain.InferFields(names, records),
		Records: records,
	}, nil
}

func (c *jsonCodec) Write(path string, rs *domain.RecordSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records := rs.Records
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// toRecords converts a decoded JSON document into records.
func toRecords(raw any) ([]domain.Record, error) {
	switch v := raw.(type) {
	case []any:
		records := make([]domain.Record, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is not an object", i)
			}
			records = append(records, flatten(m))
		}
		return records, nil
	case map[string]any:
		return columnsToRecords(v)
	default:
		return nil, fmt.Errorf("json root must be an array of objects or an object of arrays")
	}
}

// columnsToRecords converts {"col": [v1, v2, ...], ...} into row records.
// Every value must be an array and all arrays must be the same length.
func columnsToRecords(cols map[string]any) ([]domain.Record, error) {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	length := -1
	arrays := make(map[string][]any, len(cols))
	for _, name := range names {
		arr, ok := cols[name].([]any)
		if !ok {
			return nil, fmt.Errorf("key %q is not an array", name)
		}
		if length == -1 {
			length = len(arr)
		} else if len(arr) != length {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(arr), length)
		}
		arrays[name] = arr
	}

	records := make([]domain.Record, 0, max(length, 0))
	for i := 0; i < length; i++ {
		rec := make(domain.Record, len(names))
		for _, name := range names {
			rec[name] = scalar(arrays[name][i])
		}
		records = append(records, rec)
	}
	return records, nil
}

// flatten keeps scalar values and serializes nested structures as JSON strings.
func flatten(m map[string]any) domain.Record {
	rec := make(domain.Record, len(m))
	for k, v := range m {
		rec[k] = scalar(v)
	}
	return rec
}

// scalar passes JSON scalars through and serializes anything nested.
func scalar(v any) any {
	switch v.(type) {
	case string, float64, bool, nil:
		return v
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// fieldNames collects the union of record keys in sorted order.
// JSON objects carry no column order, so sorting keeps output stable.
func fieldNames(records []domain.Record) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}
