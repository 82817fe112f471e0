package service

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/repository"
)

// StatsService serves the dashboard.
type StatsService struct {
	stats *repository.StatsRepo
	now   func() time.Time
}

func NewStatsService(r Repos) *StatsService {
	if r.Stats == nil {
		panic("nil stats repository passed to NewStatsService")
	}
	return &StatsService{stats: r.Stats, now: time.Now}
}

// Dashboard loads every aggregate; revenue per month covers the last 12
// months including the current one.
func (s *StatsService) Dashboard(ctx context.Context) (model.Stats, error) {
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	st, err := s.stats.Load(ctx, since)
	if err != nil {
		return model.Stats{}, dbErr(err, "statistics")
	}
	return st, nil
}
