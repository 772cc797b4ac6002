// Package sweeper deletes link records that outlived the retention window.
package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/model"
	"github.com/penshort/shortkv/internal/store"
)

const (
	// DefaultRetentionWindow is how long a record lives after creation.
	DefaultRetentionWindow = 30 * 24 * time.Hour

	// DefaultPageSize is the number of keys listed per store call.
	DefaultPageSize = store.DefaultPageSize

	// DefaultConcurrency bounds parallel record checks within a page.
	DefaultConcurrency = 8
)

// ErrAlreadyRunning is returned when a sweep is requested while one is active.
var ErrAlreadyRunning = errors.New("sweep already running")

// Purger is implemented by stores that keep expired rows until told to drop them.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Result summarizes one sweep pass.
type Result struct {
	RunID    string
	Scanned  int           // record keys examined, stats keys excluded
	Deleted  int           // record pairs removed
	Skipped  int           // vanished, unparsable or undated records
	Failed   int           // records whose deletion failed
	Orphans  int           // stats keys removed because their record was gone
	Purged   int64         // rows dropped by the store's own expiry purge
	Duration time.Duration
}

// Config holds sweep tuning.
type Config struct {
	RetentionWindow time.Duration
	PageSize        int
	Concurrency     int
}

// Sweeper walks the whole store and removes expired record pairs.
type Sweeper struct {
	store       store.Store
	logger      *slog.Logger
	metrics     metrics.Recorder
	retention   time.Duration
	pageSize    int
	concurrency int
	now         func() time.Time

	running atomic.Bool
}

// New creates a Sweeper. Zero config values take package defaults.
func New(st store.Store, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Sweeper {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = DefaultRetentionWindow
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Sweeper{
		store:       st,
		logger:      logger.With("component", "sweeper"),
		metrics:     recorder,
		retention:   cfg.RetentionWindow,
		pageSize:    cfg.PageSize,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// SetClock overrides the time source used to compute the cutoff.
func (s *Sweeper) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type outcome int

const (
	outcomeKept outcome = iota
	outcomeDeleted
	outcomeSkipped
	outcomeFailed
)

// Sweep runs one full pass. Per-record failures are logged and counted; an
// error is returned only when listing fails or ctx ends.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.IncSweepRun(metrics.SweepStatusSkipped)
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	start := time.Now()
	result := Result{RunID: ulid.Make().String()}
	cutoff := s.now().UTC().Add(-s.retention)
	logger := s.logger.With("run_id", result.RunID)

	logger.Debug("sweep_started", slog.Time("cutoff", cutoff))

	err := s.sweepPages(ctx, cutoff, logger, &result)

	if err == nil {
		if purger, ok := s.store.(Purger); ok {
			purged, purgeErr := purger.PurgeExpired(ctx)
			if purgeErr != nil {
				logger.Warn("sweep_purge_failed", slog.String("error", purgeErr.Error()))
			}
			result.Purged = purged
		}
	}

	result.Duration = time.Since(start)
	s.metrics.ObserveSweepDuration(result.Duration)
	s.metrics.AddSweepDeleted(result.Deleted + result.Orphans)
	s.metrics.AddSweepFailed(result.Failed)

	attrs := []any{
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", result.Deleted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Int("orphans", result.Orphans),
		slog.Int64("purged", result.Purged),
		slog.Int64("duration_ms", result.Duration.Milliseconds()),
	}
	if err != nil {
		s.metrics.IncSweepRun(metrics.SweepStatusFailed)
		logger.Error("sweep_aborted", append(attrs, slog.String("error", err.Error()))...)
		return result, err
	}

	s.metrics.IncSweepRun(metrics.SweepStatusSuccess)
	logger.Info("sweep_completed", attrs...)
	return result, nil
}

func (s *Sweeper) sweepPages(ctx context.Context, cutoff time.Time, logger *slog.Logger, result *Result) error {
	var scanned, deleted, skipped, failed, orphans atomic.Int64
	defer func() {
		result.Scanned = int(scanned.Load())
		result.Deleted = int(deleted.Load())
		result.Skipped = int(skipped.Load())
		result.Failed = int(failed.Load())
		result.Orphans = int(orphans.Load())
	}()

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.store.List(ctx, cursor, s.pageSize)
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}

		records := make(map[string]struct{}, len(page.Keys))
		var statsKeys []string
		for _, key := range page.Keys {
			if model.IsStatsKey(key) {
				statsKeys = append(statsKeys, key)
				continue
			}
			records[key] = struct{}{}
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for key := range records {
			key := key
			scanned.Add(1)
			g.Go(func() error {
				switch s.sweepKey(ctx, key, cutoff, logger) {
				case outcomeDeleted:
					deleted.Add(1)
				case outcomeSkipped:
					skipped.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		// Stats whose record shares the page were handled with the pair.
		for _, key := range statsKeys {
			if _, ok := records[strings.TrimPrefix(key, model.StatsKeyPrefix)]; ok {
				continue
			}
			key := key
			g.Go(func() error {
				switch s.sweepOrphan(ctx, key, logger) {
				case outcomeDeleted:
					orphans.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if page.Complete {
			return nil
		}
		if page.Cursor == "" {
			return errors.New("store returned incomplete page without cursor")
		}
		cursor = page.Cursor
	}
}

// sweepKey deletes the pair for key when its record predates cutoff.
// The record goes first; stats left behind by a failed second delete are
// picked up as an orphan on a later pass.
func (s *Sweeper) sweepKey(ctx context.Context, key string, cutoff time.Time, logger *slog.Logger) outcome {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return outcomeSkipped
		}
		logger.Warn("sweep_read_failed", slog.String("key", key), slog.String("error", err.Error()))
		return outcomeFailed
	}

	var record model.URLRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		logger.Warn("sweep_record_unparsable", slog.String("key", key), slog.String("error", err.Error()))
		return outcomeSkipped
	}
	if record.CreatedAt.IsZero() {
		logger.Warn("sweep_record_undated", slog.String("key", key))
		return outcomeSkipped
	}
	if !record.IsExpired(cutoff) {
		return outcomeKept
	}

	if err := s.store.Delete(ctx, key); err != nil {
		logger.Warn("sweep_delete_failed", slog.String("key", key), slog.String("error", err.Error()))
		return outcomeFailed
	}
	if err := s.store.Delete(ctx, model.StatsKey(key)); err != nil {
		logger.Warn("sweep_delete_failed", slog.String("key", model.StatsKey(key)), slog.String("error", err.Error()))
		return outcomeFailed
	}

	logger.Debug("sweep_record_deleted",
		slog.String("short_code", key),
		slog.Time("created_at", record.CreatedAt),
	)
	return outcomeDeleted
}

// sweepOrphan removes a stats key whose record no longer exists. Records are
// always written before their stats, so a missing record means the stats
// can never be read again.
func (s *Sweeper) sweepOrphan(ctx context.Context, statsKey string, logger *slog.Logger) outcome {
	code := strings.TrimPrefix(statsKey, model.StatsKeyPrefix)
	exists, err := store.Exists(ctx, s.store, code)
	if err != nil {
		logger.Warn("sweep_read_failed", slog.String("key", code), slog.String("error", err.Error()))
		return outcomeFailed
	}
	if exists {
		return outcomeKept
	}

	if err := s.store.Delete(ctx, statsKey); err != nil {
		logger.Warn("sweep_delete_failed", slog.String("key", statsKey), slog.String("error", err.Error()))
		return outcomeFailed
	}
	logger.Debug("sweep_orphan_deleted", slog.String("key", statsKey))
	return outcomeDeleted
}
