package domain

// Format is the closed set of source/artifact formats the pipeline handles.
// All format-dependent routing dispatches on this type, never on raw strings.
type Format string

const (
	// FormatCSV is delimited text: header line plus data rows.
	FormatCSV Format = "csv"
	// FormatJSON is structured text: an array of row objects or an
	// object of equal-length column arrays.
	FormatJSON Format = "json"
)

// Formats lists every known format in routing order.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

func (f Format) String() string {
	return string(f)
}
