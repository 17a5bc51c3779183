package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"retailetl/internal/catalog"
	"retailetl/internal/pipeline"
)

// ─────────────────────────────────────────────────────────────
// Batch Service — coordinates batch runs
// Single-flight execution, catalog recording, and the optional
// cron / file-watch triggers that re-run the whole batch.
// ─────────────────────────────────────────────────────────────

// Trigger labels recorded with each run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWatch    = "file_watch"
)

// debounce absorbs editor write bursts before a watch-triggered run.
const debounce = 500 * time.Millisecond

// ErrAlreadyRunning reports a trigger that fired while a batch was
// still in progress.
var ErrAlreadyRunning = errors.New("a batch run is already in progress")

// Runner executes one batch over the raw directory.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// Recorder persists a finished run.
type Recorder interface {
	RecordRun(trigger string, result *pipeline.RunResult) (*catalog.Run, error)
}

// Service runs batches on demand and on triggers.
type Service struct {
	runner   Runner
	recorder Recorder
	guard    runGuard

	// trigger lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// New creates a Service. recorder may be nil, in which case runs
// are not persisted.
func New(runner Runner, recorder Recorder) *Service {
	return &Service{runner: runner, recorder: recorder}
}

// RunOnce executes one batch if none is in progress and records the
// result. A failure to record is logged, not returned; the batch
// itself already succeeded.
func (s *Service) RunOnce(ctx context.Context, trigger string) (*pipeline.RunResult, error) {
	if !s.guard.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.guard.Unlock()

	result, err := s.runner.Run(ctx)
	if err != nil {
		return result, err
	}

	if s.recorder != nil {
		if _, err := s.recorder.RecordRun(trigger, result); err != nil {
			log.Printf("[CATALOG] record run: %v", err)
		}
	}
	return result, nil
}

// ── Triggers ────────────────────────────────────────────────

// Schedule starts a cron trigger that re-runs the batch on expr.
func (s *Service) Schedule(ctx context.Context, expr string) error {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		log.Printf("[CRON] triggering batch")
		if _, err := s.RunOnce(ctx, TriggerSchedule); err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				log.Printf("[CRON] tick skipped: previous run still going")
				return
			}
			log.Printf("[CRON] batch failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	c.Start()
	s.cronSched = c
	log.Printf("[CRON] batch scheduled with %q", expr)
	return nil
}

// Watch starts a file watcher that re-runs the batch when a file in
// rawDir is written or created.
func (s *Service) Watch(ctx context.Context, rawDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(rawDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", rawDir, err)
	}
	s.watcher = watcher

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		var timer *time.Timer
		// A debounce timer still pending at teardown must not fire
		// a run after Stop.
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				name := event.Name
				timer = time.AfterFunc(debounce, func() {
					log.Printf("[WATCH] %s changed, triggering batch", name)
					if _, err := s.RunOnce(ctx, TriggerWatch); err != nil {
						if errors.Is(err, ErrAlreadyRunning) {
							log.Printf("[WATCH] change skipped: previous run still going")
							return
						}
						log.Printf("[WATCH] batch failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WATCH] error: %v", err)
			}
		}
	}()

	log.Printf("[WATCH] watching %s", rawDir)
	return nil
}

// WaitRunning blocks until an in-progress batch finishes or ctx is
// cancelled. Used for graceful shutdown.
func (s *Service) WaitRunning(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

// Stop tears down the cron scheduler and the file watcher.
func (s *Service) Stop() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
