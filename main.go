// Command retailetl cleans raw retail exports and loads them into the
// relational and document sinks. By default it runs one batch and exits;
// -watch and -schedule keep it resident.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"retailetl/internal/catalog"
	"retailetl/internal/config"
	"retailetl/internal/pipeline"
	"retailetl/internal/service"
	"retailetl/internal/sink"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		rawDir     = flag.String("raw", filepath.Join("data", "raw"), "Directory scanned for *_dirty.csv and *_dirty.json files")
		cleanedDir = flag.String("cleaned", filepath.Join("data", "cleaned"), "Directory for cleaned CSV output")
		jsonDir    = flag.String("json", filepath.Join("data", "json"), "Directory for cleaned JSON output")
		watch      = flag.Bool("watch", false, "Stay resident and re-run the batch when the raw directory changes")
		schedule   = flag.String("schedule", "", "Cron expression for periodic runs (e.g. \"0 2 * * *\")")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, dir := range []string{*rawDir, *cleanedDir, *jsonDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	cfg := config.Load()

	sinks, err := sink.Open(ctx, cfg.Relational, cfg.Document)
	if err != nil {
		return err
	}
	defer sinks.Close()

	store, err := catalog.New(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open run catalog: %w", err)
	}
	defer store.Close()

	p := &pipeline.Pipeline{
		Paths: pipeline.Paths{
			Raw:     *rawDir,
			Cleaned: *cleanedDir,
			JSON:    *jsonDir,
		},
		Relational: sinks.Relational,
		Document:   sinks.Document,
	}
	svc := service.New(p, store)
	defer svc.Stop()

	result, err := svc.RunOnce(ctx, service.TriggerManual)
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	if *schedule != "" {
		if err := svc.Schedule(ctx, *schedule); err != nil {
			return err
		}
	}
	if *watch {
		if err := svc.Watch(ctx, *rawDir); err != nil {
			return err
		}
	}
	if *schedule == "" && !*watch {
		if loaded, partial, skipped := result.Counts(); loaded == 0 && partial+skipped > 0 {
			return fmt.Errorf("no file loaded: %d partial, %d skipped", partial, skipped)
		}
		return nil
	}

	<-ctx.Done()
	log.Println("[PIPELINE] shutting down")
	svc.Stop()

	// Let an in-flight batch finish before the sinks close.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	svc.WaitRunning(waitCtx)
	return nil
}
