package domain

// ── Record Set ─────────────────────────────────────────────
// Common intermediate data format: every reader produces one,
// every writer consumes one. A raw set comes straight from a
// source file; a cleaned set has canonical field names and
// explicit nulls in every record.

// FieldType is the inferred scalar type of a column.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
)

// Field describes a single column in a record set.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Record is a single row: field name → scalar value.
// Values are string, float64, bool, or nil.
type Record map[string]any

// RecordSet is an ordered batch of rows read from exactly one source file.
type RecordSet struct {
	Fields  []Field  `json:"fields"`
	Records []Record `json:"records"`
}

// FieldNames returns the column names in declaration order.
func (rs *RecordSet) FieldNames() []string {
	names := make([]string, len(rs.Fields))
	for i, f := range rs.Fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	return len(rs.Records)
}

// InferFields derives typed columns from the values present in records.
// Column order follows the given name order. A column holding values of
// more than one scalar type degrades to text; a column with no non-nil
// values defaults to text.
func InferFields(names []string, records []Record) []Field {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field{Name: name, Type: inferColumnType(name, records)}
	}
	return fields
}

func inferColumnType(name string, records []Record) FieldType {
	var t FieldType
	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		vt := scalarType(v)
		if t == "" {
			t = vt
			continue
		}
		if t != vt {
			return FieldText
		}
	}
	if t == "" {
		return FieldText
	}
	return t
}

func scalarType(v any) FieldType {
	switch v.(type) {
	case float64, float32, int, int64:
		return FieldNumber
	case bool:
		return FieldBoolean
	default:
		return FieldText
	}
}
