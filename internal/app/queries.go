package app

import (
	"context"
	"fmt"
	"time"

	"stayscan/internal/domain"
)

type QueryService struct {
	repo     domain.CalendarRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.CalendarRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func calendarCacheKey(roomID string) string { return fmt.Sprintf("calendar:%s", roomID) }

// GetCalendar returns the current day records for a room. Only the unbounded
// default query is cached; bounded queries have too many key variants to be
// worth keeping warm.
func (s *QueryService) GetCalendar(ctx context.Context, roomID string, q domain.DaysQuery) ([]domain.DayRecord, error) {
	cacheable := q.From.IsZero() && q.To.IsZero() && q.Limit == 0
	key := calendarCacheKey(roomID)

	if cacheable {
		var cached []domain.DayRecord
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}
	days, err := s.repo.ListDays(ctx, roomID, q)
	if err != nil {
		return nil, err
	}
	if cacheable {
		// copy slice to avoid aliasing the repo's backing array (prevents
		// callers from mutating the cached value)
		cp := make([]domain.DayRecord, len(days))
		copy(cp, days)
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return days, nil
}

// ListTransitions returns the audit trail for one (room, day), newest first.
// Never cached: the whole point of the trail is freshness.
func (s *QueryService) ListTransitions(ctx context.Context, roomID string, day time.Time, limit int) ([]domain.Transition, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListTransitions(ctx, roomID, day, limit)
}
