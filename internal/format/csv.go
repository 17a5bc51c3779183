package format

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"retailetl/internal/domain"
)

// ── CSV Codec ───────────────────────────────────────────────
// Reads raw CSV files and writes cleaned ones.
// The first row is always the header; blank header cells get
// positional unnamed_<i> names so every column stays addressable.

type csvCodec struct{}

func init() { Register(&csvCodec{}) }

func (c *csvCodec) Format() domain.Format { return domain.FormatCSV }

func (c *csvCodec) Extension() string { return ".csv" }

func (c *csvCodec) Read(path string) (*domain.RecordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("parse csv: %w", err)}
	}
	if len(rows) == 0 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("empty csv file")}
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("unnamed_%d", i)
		}
		headers[i] = h
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(domain.Record, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = csvValue(row[j])
			} else {
				rec[h] = nil // short row
			}
		}
		records = append(records, rec)
	}

	return &domain.RecordSet{
		Fields:  domain.InferFields(headers, records),
		Records: records,
	}, nil
}

func (c *csvCodec) Write(path string, rs *domain.RecordSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	names := rs.FieldNames()
	if err := w.Write(names); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(names))
	for _, rec := range rs.Records {
		for i, name := range names {
			row[i] = csvCell(rec[name])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// csvValue parses a raw CSV cell as a number or bool, else keeps the string.
func csvValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}

	return s
}

// csvCell renders a cleaned value as a CSV cell. Nulls become empty cells;
// numbers render positionally, never in scientific notation.
func csvCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
