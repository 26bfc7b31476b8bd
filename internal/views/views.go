// Package views serves the read side: dashboard, trending, CSV export, and
// upvotes. Read paths degrade to empty results when the store is unavailable;
// the upvote write path surfaces failures.
package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/store"
)

// trendingWindows maps the public period names to lookback durations. Zero
// means unbounded.
var trendingWindows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"all": 0,
}

const (
	dashboardLimit   = 50
	trendingDefault  = 20
	trendingMaxLimit = 50
	exportTopCount   = 5
	exportRecentMax  = 25
	exportWindow     = 7 * 24 * time.Hour
)

// Reader is the slice of the store the read side needs.
type Reader interface {
	Find(ctx context.Context, q store.Query) ([]store.Item, error)
	Totals(ctx context.Context) (store.Totals, error)
	IncrementUpvotes(ctx context.Context, id string) (int64, error)
}

// Config holds read-path tuning.
type Config struct {
	// DefaultPeriod is the trending window used when none (or an unknown
	// one) is requested.
	DefaultPeriod string

	// CacheTTL bounds staleness of cached dashboard and trending views.
	CacheTTL time.Duration
}

// DashboardView is the landing-page payload.
type DashboardView struct {
	Items           []store.Item
	TotalDetections int64
	TotalUpvotes    int64
}

// TrendingView is a ranked slice of recent activity.
type TrendingView struct {
	Items  []store.Item
	Period string
	SortBy string
}

// Service implements the read side over the store.
type Service struct {
	reader Reader
	config Config
	cache  *gocache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the read-side service.
func NewService(reader Reader, cfg Config, logger *zap.Logger) (*Service, error) {
	if reader == nil {
		return nil, errors.New("reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = "24h"
	}
	if _, ok := trendingWindows[cfg.DefaultPeriod]; !ok {
		return nil, fmt.Errorf("unknown default trending period %q", cfg.DefaultPeriod)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	return &Service{
		reader: reader,
		config: cfg,
		cache:  gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Dashboard returns the newest records plus global totals. A store outage
// yields an empty view rather than an error.
func (s *Service) Dashboard(ctx context.Context, category string) (*DashboardView, error) {
	cacheKey := "dashboard:" + category
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*DashboardView), nil
	}

	view := &DashboardView{Items: []store.Item{}}

	items, err := s.reader.Find(ctx, store.Query{
		Category: category,
		Sort:     store.SortRecent,
		Limit:    dashboardLimit,
	})
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			s.logger.Warn("store unavailable, returning empty dashboard", zap.Error(err))
			return view, nil
		}
		return nil, err
	}
	view.Items = items

	totals, err := s.reader.Totals(ctx)
	if err != nil {
		s.logger.Warn("failed to aggregate totals", zap.Error(err))
	} else {
		view.TotalDetections = totals.Detections
		view.TotalUpvotes = totals.Upvotes
	}

	s.cache.SetDefault(cacheKey, view)
	return view, nil
}

// Trending returns a ranked window of recent records. Unknown periods and
// sort keys fall back to defaults; the limit is capped.
func (s *Service) Trending(ctx context.Context, period, sortBy string, limit int) (*TrendingView, error) {
	window, ok := trendingWindows[period]
	if !ok {
		period = s.config.DefaultPeriod
		window = trendingWindows[period]
	}

	sort := normalizeSort(sortBy)

	if limit <= 0 {
		limit = trendingDefault
	}
	if limit > trendingMaxLimit {
		limit = trendingMaxLimit
	}

	cacheKey := fmt.Sprintf("trending:%s:%s:%d", period, sort, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*TrendingView), nil
	}

	q := store.Query{Sort: sort, Limit: limit}
	if window > 0 {
		q.Since = s.now().Add(-window)
	}

	view := &TrendingView{Items: []store.Item{}, Period: period, SortBy: string(sort)}

	items, err := s.reader.Find(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			s.logger.Warn("store unavailable, returning empty trending view", zap.Error(err))
			return view, nil
		}
		return nil, err
	}
	view.Items = items

	s.cache.SetDefault(cacheKey, view)
	return view, nil
}

func normalizeSort(sortBy string) store.SortKey {
	switch store.SortKey(sortBy) {
	case store.SortUpvotes, store.SortRecent, store.SortConfidence:
		return store.SortKey(sortBy)
	default:
		return store.SortUpvotes
	}
}

// Upvote records one endorsement and returns the new count.
func (s *Service) Upvote(ctx context.Context, id string) (int64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, fmt.Errorf("%w: empty id", store.ErrNotFound)
	}
	count, err := s.reader.IncrementUpvotes(ctx, id)
	if err != nil {
		return 0, err
	}
	// Cached views now undercount; drop them rather than serve stale ranks
	// for a full TTL.
	s.cache.Flush()
	return count, nil
}
