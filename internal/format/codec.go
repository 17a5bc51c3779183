package format

import (
	"fmt"
	"sync"

	"retailetl/internal/domain"
)

// ── Codec ───────────────────────────────────────────────────
// A Codec reads raw files of one format into record sets and
// writes cleaned record sets back out.
// Implementations live in this package — one file per format.
//
// Pattern: Airbyte connector registry (one connector per format,
// registered at init time).

// Codec handles one raw file format end to end.
type Codec interface {
	// Format identifies the file format this codec handles.
	Format() domain.Format

	// Extension returns the file extension including the dot, e.g. ".csv".
	Extension() string

	// Read parses the file at path into a record set.
	// Failures are reported as *ReadError.
	Read(path string) (*domain.RecordSet, error)

	// Write renders a cleaned record set to the file at path,
	// creating parent directories as needed.
	Write(path string, rs *domain.RecordSet) error
}

// ── Codec Registry ──────────────────────────────────────────
// Compile-time registration via init() in each codec file.

var (
	registryMu sync.RWMutex
	registry   = map[domain.Format]Codec{}
)

// Register registers a codec under its format.
// Called from init() in each codec implementation file.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Format()] = c
}

// Lookup returns the registered codec for a format, or an error if not found.
func Lookup(f domain.Format) (Codec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[f]
	if !ok {
		return nil, fmt.Errorf("unknown format: %q", f)
	}
	return c, nil
}

// Codecs returns all registered codecs in canonical format order,
// so batch runs visit formats deterministically.
func Codecs() []Codec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	codecs := make([]Codec, 0, len(registry))
	for _, f := range domain.Formats() {
		if c, ok := registry[f]; ok {
			codecs = append(codecs, c)
		}
	}
	return codecs
}

// ── Read Errors ─────────────────────────────────────────────

// ReadError marks a raw file that could not be read or parsed.
// The batch skips the file and carries on.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %s: %v", e.Path, e.Err) }

func (e *ReadError) Unwrap() error { return e.Err }
