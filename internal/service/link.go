// Package service provides business logic for the application.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/penshort/shortkv/internal/analytics"
	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/model"
	"github.com/penshort/shortkv/internal/shortcode"
	"github.com/penshort/shortkv/internal/store"
)

// Service errors.
var (
	ErrMissingURL   = errors.New("url is required")
	ErrInvalidURL   = errors.New("invalid URL: only absolute http and https URLs are accepted")
	ErrURLTooLong   = errors.New("URL too long")
	ErrLinkNotFound = errors.New("link not found")
)

const (
	maxLongURLLength = 2048

	// minRemainingTTL keeps a near-expired pair from being rewritten without expiry.
	minRemainingTTL = time.Second
)

// IsValidationError reports whether err was caused by bad client input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingURL) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrURLTooLong)
}

// LinkService handles link business logic.
type LinkService struct {
	store     store.Store
	generator *shortcode.Generator
	baseURL   string
	logger    *slog.Logger
	metrics   metrics.Recorder
	recordTTL time.Duration
	now       func() time.Time
}

// NewLinkService creates a new LinkService.
func NewLinkService(st store.Store, generator *shortcode.Generator, baseURL string, logger *slog.Logger, recorder metrics.Recorder) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkService{
		store:     st,
		generator: generator,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger.With("component", "service.link"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// SetRecordTTL makes every record pair expire ttl after creation.
// Zero disables expiry.
func (s *LinkService) SetRecordTTL(ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	s.recordTTL = ttl
}

// SetClock overrides the time source.
func (s *LinkService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BaseURL returns the configured base URL.
func (s *LinkService) BaseURL() string {
	return s.baseURL
}

// ShortenInput defines input for creating a link.
type ShortenInput struct {
	LongURL   string
	CreatorIP string
}

// ShortenResult is returned after a link is created.
type ShortenResult struct {
	ShortCode   string
	ShortURL    string
	OriginalURL string
	CreatedAt   time.Time
}

// Shorten validates input.LongURL and stores a new record pair for it.
func (s *LinkService) Shorten(ctx context.Context, input ShortenInput) (*ShortenResult, error) {
	if err := validateLongURL(input.LongURL); err != nil {
		return nil, err
	}

	code, err := s.generator.Generate(ctx)
	if err != nil {
		if errors.Is(err, shortcode.ErrGenerationExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to generate short code: %w", err)
	}

	creatorIP := strings.TrimSpace(input.CreatorIP)
	if creatorIP == "" {
		creatorIP = model.UnknownLabel
	}

	now := s.now().UTC()
	record := &model.URLRecord{
		LongURL:   input.LongURL,
		CreatedAt: now,
		Clicks:    0,
		CreatorIP: creatorIP,
	}
	ttl := s.remainingTTL(record.CreatedAt, now)

	// Record first: stats are only ever written for a code that exists, so
	// a stats key without its record is always an orphan the sweeper may drop.
	if err := s.putJSON(ctx, code, record, ttl); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if err := s.putJSON(ctx, model.StatsKey(code), model.NewStatsRecord(), ttl); err != nil {
		if delErr := s.store.Delete(ctx, code); delErr != nil {
			s.logger.Warn("record_cleanup_failed",
				slog.String("short_code", code),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to store stats: %w", err)
	}

	s.metrics.IncLinkCreated()

	return &ShortenResult{
		ShortCode:   code,
		ShortURL:    s.baseURL + "/" + code,
		OriginalURL: input.LongURL,
		CreatedAt:   now,
	}, nil
}

// Resolve looks up code, counts the click and returns the updated record.
//
// The read-modify-write of the record pair is not atomic. Concurrent clicks on
// the same code may overwrite each other's increments.
func (s *LinkService) Resolve(ctx context.Context, code string, geo analytics.GeoInfo) (*model.URLRecord, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	record, err := s.getRecord(ctx, code)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			s.metrics.IncRedirectNotFound()
		}
		return nil, err
	}

	stats, err := s.getStats(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record.Clicks++
	record.LastAccessedAt = &now
	stats = analytics.Aggregate(now, geo, stats)

	ttl := s.remainingTTL(record.CreatedAt, now)
	if err := s.putJSON(ctx, code, record, ttl); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if err := s.putJSON(ctx, model.StatsKey(code), stats, ttl); err != nil {
		return nil, fmt.Errorf("failed to store stats: %w", err)
	}

	s.metrics.IncRedirect()
	return record, nil
}

// Lookup returns the record for code without counting a click.
func (s *LinkService) Lookup(ctx context.Context, code string) (*model.URLRecord, error) {
	return s.getRecord(ctx, code)
}

// Stats returns the merged record and analytics for code.
func (s *LinkService) Stats(ctx context.Context, code string) (*model.StatsView, error) {
	record, err := s.getRecord(ctx, code)
	if err != nil {
		return nil, err
	}

	stats, err := s.getStats(ctx, code)
	if err != nil {
		return nil, err
	}

	return model.NewStatsView(code, record, stats), nil
}

func (s *LinkService) getRecord(ctx context.Context, code string) (*model.URLRecord, error) {
	raw, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var record model.URLRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %q: %w", code, err)
	}
	return &record, nil
}

// getStats loads the stats paired with code. A missing body reads as empty.
func (s *LinkService) getStats(ctx context.Context, code string) (model.StatsRecord, error) {
	raw, err := s.store.Get(ctx, model.StatsKey(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.NewStatsRecord(), nil
		}
		return model.StatsRecord{}, fmt.Errorf("failed to load stats: %w", err)
	}

	var stats model.StatsRecord
	if err := json.Unmarshal(raw, &stats); err != nil {
		return model.StatsRecord{}, fmt.Errorf("failed to decode stats %q: %w", code, err)
	}
	return stats.Clone(), nil
}

func (s *LinkService) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.store.Put(ctx, key, data, ttl)
}

// remainingTTL returns how long a pair created at createdAt still has to live.
func (s *LinkService) remainingTTL(createdAt, now time.Time) time.Duration {
	if s.recordTTL <= 0 {
		return 0
	}
	remaining := createdAt.Add(s.recordTTL).Sub(now)
	if remaining < minRemainingTTL {
		return minRemainingTTL
	}
	return remaining
}

// validateLongURL accepts absolute http(s) URLs with a host.
func validateLongURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMissingURL
	}

	if len(raw) > maxLongURLLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}

	// Must have a host
	if parsed.Host == "" {
		return ErrInvalidURL
	}

	return nil
}
