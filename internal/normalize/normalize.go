// Package normalize implements the uniform cleaning transform applied to
// every raw record set before it reaches a sink: canonical field names and
// explicit nulls. The transform is pure, total, and idempotent — cleaning
// already-clean data is a no-op.
package normalize

import (
	"math"
	"strings"
	"unicode"

	"retailetl/internal/domain"
)

// nullSentinels are the string values canonicalized to nil, matched exactly.
// Mirrors the usual not-available spellings found in exported tabular data.
var nullSentinels = map[string]struct{}{
	"":     {},
	"null": {},
	"NULL": {},
	"NaN":  {},
	"nan":  {},
	"N/A":  {},
	"n/a":  {},
	"NA":   {},
	"None": {},
	"none": {},
}

// Clean returns a cleaned copy of rs. Field names are canonicalized, every
// null-like value becomes an explicit nil, and every record carries the full
// cleaned column set (a missing key is materialized as nil). Column types are
// re-inferred from the cleaned values. Row order and row count are preserved;
// the input is never mutated.
func Clean(rs *domain.RecordSet) *domain.RecordSet {
	// Clean field names in order. Two raw names may collapse into one
	// cleaned name; the first occurrence keeps the column position.
	names := make([]string, 0, len(rs.Fields))
	seen := make(map[string]bool, len(rs.Fields))
	rawToClean := make(map[string]string, len(rs.Fields))
	for _, f := range rs.Fields {
		name := FieldName(f.Name)
		rawToClean[f.Name] = name
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	records := make([]domain.Record, len(rs.Records))
	for i, rec := range rs.Records {
		out := make(domain.Record, len(names))
		// Later raw fields overwrite earlier ones on a name collision.
		for _, f := range rs.Fields {
			if v, ok := rec[f.Name]; ok {
				out[rawToClean[f.Name]] = Value(v)
			}
		}
		for _, name := range names {
			if _, ok := out[name]; !ok {
				out[name] = nil
			}
		}
		records[i] = out
	}

	// Types come from the cleaned values, not the raw read: a numeric
	// column read as mixed text because of a spelled-out null sentinel
	// is numeric again once the sentinel is nil.
	return &domain.RecordSet{Fields: domain.InferFields(names, records), Records: records}
}

// FieldName canonicalizes a column name: lower-case, whitespace to
// underscore, then everything outside [a-z0-9_] stripped.
// "Customer ID!" → "customer_id", "Região" → "regio".
func FieldName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Value canonicalizes a scalar: NaN floats and null sentinel strings become
// nil, everything else passes through unchanged.
func Value(v any) any {
	switch s := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(s) {
			return nil
		}
		return s
	case string:
		if _, ok := nullSentinels[s]; ok {
			return nil
		}
		return s
	default:
		return v
	}
}
