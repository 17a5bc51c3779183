package domain

import "strings"

// Naming rules shared by the file, table, and collection writers.
// One source filename deterministically yields one artifact name and one
// sink identifier, which is what makes replace-on-reload idempotent.

const (
	rawMarker   = "_dirty"
	cleanMarker = "_cleaned"

	// StagingPrefix is prepended to the identifier for relational tables.
	StagingPrefix = "staging_"
)

// CleanName maps a raw filename to its cleaned artifact name:
// every raw marker is substituted with the cleaned marker, extension kept.
// "sales_dirty.csv" → "sales_cleaned.csv". A name without the raw marker
// passes through unchanged.
func CleanName(filename string) string {
	return strings.ReplaceAll(filename, rawMarker, cleanMarker)
}

// Identifier derives the sink identifier from a raw filename: the cleaned
// name with everything from the first dot dropped. It names both the output
// file stem and the table/collection.
// "sales_dirty.csv" → "sales_cleaned".
func Identifier(filename string) string {
	name := CleanName(filename)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// StagingTable returns the relational table name for an identifier.
// "sales_cleaned" → "staging_sales_cleaned".
func StagingTable(identifier string) string {
	return StagingPrefix + identifier
}
