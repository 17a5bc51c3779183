package sink

import (
	"context"
	"fmt"
	"log"
)

// ── Sinks ───────────────────────────────────────────────────
// A batch writes every cleaned dataset to two destinations: a
// relational staging table and a document collection. Both
// connections are opened once at startup and released together.
//
// Pattern: Singer target protocol (one writer per destination).

// RelationalConfig carries connection parameters for the relational sink.
type RelationalConfig struct {
	Driver   string // "postgres" or "mysql"
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DocumentConfig carries connection parameters for the document sink.
type DocumentConfig struct {
	URI      string
	Database string
}

// Sinks bundles the open destinations for one batch run.
type Sinks struct {
	Relational *Relational
	Document   *Document
}

// Open connects both sinks and verifies each with a ping.
// If either connection fails, nothing stays open and the error
// is a *ConnectionError.
func Open(ctx context.Context, rcfg RelationalConfig, dcfg DocumentConfig) (*Sinks, error) {
	rel, err := OpenRelational(ctx, rcfg)
	if err != nil {
		return nil, err
	}
	doc, err := OpenDocument(ctx, dcfg)
	if err != nil {
		rel.Close()
		return nil, err
	}
	return &Sinks{Relational: rel, Document: doc}, nil
}

// Close releases both connections in reverse open order.
func (s *Sinks) Close() {
	if s.Document != nil {
		if err := s.Document.Close(); err != nil {
			log.Printf("[MONGO] close: %v", err)
		}
	}
	if s.Relational != nil {
		if err := s.Relational.Close(); err != nil {
			log.Printf("[%s] close: %v", s.Relational.tag(), err)
		}
	}
}

// ── Errors ──────────────────────────────────────────────────

// ConnectionError marks a sink that could not be reached at startup.
// The batch refuses to run unless both sinks are up.
type ConnectionError struct {
	Sink string
	Err  error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connect %s: %v", e.Sink, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError marks a failed write to one destination. The write to
// the sibling destination for the same dataset still proceeds.
type WriteError struct {
	Sink   string
	Target string // table, collection, or file path
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s to %s: %v", e.Target, e.Sink, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
