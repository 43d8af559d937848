package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

const (
	trailingWeeks   = 8
	topProductLimit = 5
	weekLabelLayout = "Jan 02"
)

type AnalyticsService struct {
	ledger port.LedgerRepository
	loc    *time.Location
	now    func() time.Time
}

// NewAnalyticsService buckets sales into Monday-based weeks in loc.
func NewAnalyticsService(ledger port.LedgerRepository, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{ledger: ledger, loc: loc, now: time.Now}
}

func (s *AnalyticsService) Summary(ctx context.Context) (*domain.Analytics, error) {
	currentWeek := StartOfWeek(s.now(), s.loc)
	from := currentWeek.AddDate(0, 0, -7*(trailingWeeks-1))
	to := currentWeek.AddDate(0, 0, 7)

	totals, err := s.ledger.SaleTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load sale totals: %w", err)
	}

	weeks := make([]domain.WeeklyRevenue, trailingWeeks)
	for i := range weeks {
		start := from.AddDate(0, 0, 7*i)
		weeks[i] = domain.WeeklyRevenue{
			WeekStart: start,
			Week:      start.Format(weekLabelLayout),
			Revenue:   decimal.Zero,
		}
	}

	for _, t := range totals {
		idx := weekIndex(weeks, t.CreatedAt)
		if idx < 0 {
			continue
		}
		weeks[idx].Revenue = weeks[idx].Revenue.Add(t.GrandTotal)
		weeks[idx].Sales++
	}

	top, err := s.ledger.TopProducts(ctx, topProductLimit)
	if err != nil {
		return nil, fmt.Errorf("load top products: %w", err)
	}
	if top == nil {
		top = []domain.TopProduct{}
	}

	current := weeks[trailingWeeks-1]
	return &domain.Analytics{
		CurrentWeekRevenue: current.Revenue,
		CurrentWeekSales:   current.Sales,
		WeeklyRevenue:      weeks,
		TopProducts:        top,
	}, nil
}

// StartOfWeek returns Monday 00:00 of the week containing t, in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
}

func weekIndex(weeks []domain.WeeklyRevenue, at time.Time) int {
	end := weeks[len(weeks)-1].WeekStart.AddDate(0, 0, 7)
	if at.Before(weeks[0].WeekStart) || !at.Before(end) {
		return -1
	}
	for i := len(weeks) - 1; i > 0; i-- {
		if !at.Before(weeks[i].WeekStart) {
			return i
		}
	}
	return 0
}
