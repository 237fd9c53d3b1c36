package services

import (
	"context"
	"sync"
	"time"

	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/rs/zerolog/log"
)

type RateLimitServiceConfig struct {
	SweepInterval time.Duration
	StaleAfter    time.Duration
}

type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitService is a fixed window counter per key. Each instance owns its
// records and its sweep goroutine.
type RateLimitService struct {
	config  RateLimitServiceConfig
	records map[string]*model.RateLimitRecord
	mutex   sync.Mutex
	now     func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRateLimitService(config RateLimitServiceConfig) *RateLimitService {
	return &RateLimitService{
		config:  config,
		records: make(map[string]*model.RateLimitRecord),
		now:     time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (rs *RateLimitService) WithClock(now func() time.Time) *RateLimitService {
	rs.now = now
	return rs
}

func (rs *RateLimitService) Allow(key string, limit int, window time.Duration) RateLimitResult {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	now := rs.now()
	record, exists := rs.records[key]

	if !exists || now.Sub(record.WindowStart) > window {
		rs.records[key] = &model.RateLimitRecord{
			Count:       1,
			WindowStart: now,
		}
		return RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: max(limit-1, 0),
			ResetAt:   now.Add(window),
		}
	}

	resetAt := record.WindowStart.Add(window)

	if record.Count >= limit {
		return RateLimitResult{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	record.Count++

	return RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - record.Count,
		ResetAt:   resetAt,
	}
}

// Sweep evicts records whose window started before now minus StaleAfter and
// returns how many were removed.
func (rs *RateLimitService) Sweep(now time.Time) int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	removed := 0
	for key, record := range rs.records {
		if now.Sub(record.WindowStart) > rs.config.StaleAfter {
			delete(rs.records, key)
			removed++
		}
	}
	return removed
}

func (rs *RateLimitService) Len() int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	return len(rs.records)
}

func (rs *RateLimitService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go func() {
		defer close(rs.done)

		ticker := time.NewTicker(rs.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := rs.Sweep(rs.now())
				if removed > 0 {
					log.Debug().Int("removed", removed).Msg("rate limit records swept")
				}
			}
		}
	}()
}

func (rs *RateLimitService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.cancel = nil
}
