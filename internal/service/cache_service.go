package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/pkg/config"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool)
}

// CacheService memoizes expensive per-timetable computations (locked-slot
// analysis, conflict summaries) behind Redis. Cache failures degrade to
// recomputation, never to request failures.
type CacheService struct {
	repo    cacheStore
	cfg     config.CacheConfig
	metrics cacheMetrics
	logger  *zap.Logger
}

// NewCacheService constructs the service.
func NewCacheService(repo cacheStore, cfg config.CacheConfig, metrics cacheMetrics, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, cfg: cfg, metrics: metrics, logger: logger}
}

func lockedSlotKey(timetableID string) string {
	return fmt.Sprintf("timeweaver:timetable:%s:locked", timetableID)
}

func summaryKey(timetableID string) string {
	return fmt.Sprintf("timeweaver:timetable:%s:summary", timetableID)
}

// GetLockedAnalysis loads a memoized locked-slot analysis.
func (s *CacheService) GetLockedAnalysis(ctx context.Context, timetableID string, dest interface{}) bool {
	return s.get(ctx, lockedSlotKey(timetableID), dest)
}

// PutLockedAnalysis stores a locked-slot analysis with the configured TTL.
func (s *CacheService) PutLockedAnalysis(ctx context.Context, timetableID string, value interface{}) {
	s.put(ctx, lockedSlotKey(timetableID), value, s.cfg.LockedSlotTTL)
}

// GetSummary loads a memoized conflict summary.
func (s *CacheService) GetSummary(ctx context.Context, timetableID string, dest interface{}) bool {
	return s.get(ctx, summaryKey(timetableID), dest)
}

// PutSummary stores a conflict summary with the configured TTL.
func (s *CacheService) PutSummary(ctx context.Context, timetableID string, value interface{}) {
	s.put(ctx, summaryKey(timetableID), value, s.cfg.SummaryTTL)
}

// InvalidateTimetable removes everything cached for a timetable. Called after
// any mutation: lock edits, leave application, regeneration.
func (s *CacheService) InvalidateTimetable(ctx context.Context, timetableID string) {
	if !s.enabled() {
		return
	}
	pattern := fmt.Sprintf("timeweaver:timetable:%s:*", timetableID)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}

func (s *CacheService) get(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled() {
		return false
	}
	err := s.repo.Get(ctx, key, dest)
	if err == nil {
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(true)
		}
		return true
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(false)
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *CacheService) put(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.enabled() {
		return
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CacheService) enabled() bool {
	return s.cfg.Enabled && s.repo != nil
}
