package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"retailetl/internal/domain"
	"retailetl/internal/format"
	"retailetl/internal/normalize"
	"retailetl/internal/sink"
)

// ── Pipeline ────────────────────────────────────────────────
// Orchestrates one batch run: discover raw files, clean each one,
// load it into its sink, and write the cleaned file next to it.
//
// Pattern: Airbyte sync (tap → clean → target), run as one
// synchronous batch over a directory.

// RelationalSink writes a cleaned record set into a staging table.
type RelationalSink interface {
	Replace(ctx context.Context, table string, rs *domain.RecordSet) error
}

// DocumentSink writes a cleaned record set into a collection.
type DocumentSink interface {
	Replace(ctx context.Context, collection string, rs *domain.RecordSet) error
}

// Paths locates the raw inputs and cleaned outputs on disk.
type Paths struct {
	Raw     string // raw *_dirty files
	Cleaned string // cleaned CSV output
	JSON    string // cleaned JSON output
}

// Pipeline runs the clean-and-load batch over both sinks.
type Pipeline struct {
	Paths      Paths
	Relational RelationalSink
	Document   DocumentSink
}

// FileStatus classifies the outcome for one raw file.
type FileStatus string

const (
	StatusLoaded  FileStatus = "loaded"  // both destinations written
	StatusPartial FileStatus = "partial" // at least one destination failed
	StatusSkipped FileStatus = "skipped" // file could not be read
)

// FileResult is the outcome of processing one raw file.
type FileResult struct {
	Path       string        `json:"path"`
	Format     domain.Format `json:"format"`
	Identifier string        `json:"identifier"`
	Rows       int           `json:"rows"`
	Status     FileStatus    `json:"status"`
	Errors     []string      `json:"errors,omitempty"`
}

// RunResult summarizes one batch run.
type RunResult struct {
	Started  time.Time     `json:"startedAt"`
	Duration time.Duration `json:"duration"`
	Files    []FileResult  `json:"files"`
}

// Counts tallies file outcomes by status.
func (r *RunResult) Counts() (loaded, partial, skipped int) {
	for _, f := range r.Files {
		switch f.Status {
		case StatusLoaded:
			loaded++
		case StatusPartial:
			partial++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// Run executes the batch: every *.csv goes to the relational sink,
// every *.json to the document sink, and each file that cleans
// successfully is also written to the output directory for its
// format. Files are visited in a fixed order (format, then name)
// so repeated runs behave identically.
//
// Per-file problems are recorded in the result, not returned; the
// only error Run itself reports is context cancellation.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{Started: time.Now()}

	for _, codec := range format.Codecs() {
		paths, err := p.discover(codec)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			select {
			case <-ctx.Done():
				result.Duration = time.Since(result.Started)
				return result, ctx.Err()
			default:
			}
			result.Files = append(result.Files, p.processFile(ctx, codec, path))
		}
	}

	result.Duration = time.Since(result.Started)
	loaded, partial, skipped := result.Counts()
	log.Printf("[PIPELINE] batch done in %s: %d loaded, %d partial, %d skipped",
		result.Duration.Round(time.Millisecond), loaded, partial, skipped)
	return result, nil
}

// discover lists the raw files for one codec. filepath.Glob returns
// lexically sorted names, which fixes the processing order.
func (p *Pipeline) discover(codec format.Codec) ([]string, error) {
	pattern := filepath.Join(p.Paths.Raw, "*"+codec.Extension())
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return paths, nil
}

func (p *Pipeline) processFile(ctx context.Context, codec format.Codec, path string) FileResult {
	name := filepath.Base(path)
	res := FileResult{
		Path:       path,
		Format:     codec.Format(),
		Identifier: domain.Identifier(name),
	}

	log.Printf("[PIPELINE] processing %s", name)

	raw, err := codec.Read(path)
	if err != nil {
		log.Printf("[PIPELINE] skip %s: %v", name, err)
		res.Status = StatusSkipped
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	rs := normalize.Clean(raw)
	res.Rows = rs.Len()

	// The database write and the file write are independent:
	// one failing must not stop the other.
	if err := p.writeSink(ctx, codec.Format(), res.Identifier, rs); err != nil {
		log.Printf("[PIPELINE] %v", err)
		res.Errors = append(res.Errors, err.Error())
	}
	if err := p.writeFile(codec, name, rs); err != nil {
		log.Printf("[PIPELINE] %v", err)
		res.Errors = append(res.Errors, err.Error())
	}

	if len(res.Errors) > 0 {
		res.Status = StatusPartial
	} else {
		res.Status = StatusLoaded
	}
	return res
}

func (p *Pipeline) writeSink(ctx context.Context, f domain.Format, identifier string, rs *domain.RecordSet) error {
	switch f {
	case domain.FormatCSV:
		return p.Relational.Replace(ctx, domain.StagingTable(identifier), rs)
	case domain.FormatJSON:
		return p.Document.Replace(ctx, identifier, rs)
	default:
		return fmt.Errorf("no sink for format %q", f)
	}
}

// writeFile renders the cleaned record set into the output directory
// for its format, keeping the extension: sales_dirty.csv → sales_cleaned.csv.
func (p *Pipeline) writeFile(codec format.Codec, rawName string, rs *domain.RecordSet) error {
	var dir string
	switch codec.Format() {
	case domain.FormatCSV:
		dir = p.Paths.Cleaned
	case domain.FormatJSON:
		dir = p.Paths.JSON
	default:
		return fmt.Errorf("no output directory for format %q", codec.Format())
	}

	path := filepath.Join(dir, domain.CleanName(rawName))
	if err := codec.Write(path, rs); err != nil {
		return &sink.WriteError{Sink: "file", Target: path, Err: err}
	}
	return nil
}
