package service

import (
	"context"
	"time"

	"restopos/internal/database"
	"restopos/internal/domain"
	"restopos/internal/models"
)

const dateLayout = "2006-01-02"

// RevenueService reports on bills per business day. Days are cut in the
// configured location, not UTC.
type RevenueService struct {
	repo domain.RevenueRepository
	loc  *time.Location
	now  func() time.Time
}

func NewRevenueService(repo domain.RevenueRepository, loc *time.Location) *RevenueService {
	if loc == nil {
		loc = time.UTC
	}
	return &RevenueService{repo: repo, loc: loc, now: time.Now}
}

func (s *RevenueService) Location() *time.Location {
	return s.loc
}

// DayBounds parses a YYYY-MM-DD date and returns the [start, next midnight) of that
// day. An empty date means today.
func (s *RevenueService) DayBounds(date string) (string, time.Time, time.Time, error) {
	var day time.Time
	if date == "" {
		n := s.now().In(s.loc)
		day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
	} else {
		parsed, err := time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return "", time.Time{}, time.Time{}, database.Invalidf("date must be YYYY-MM-DD, got %q", date)
		}
		day = parsed
	}
	return day.Format(dateLayout), day, day.AddDate(0, 0, 1), nil
}

func (s *RevenueService) DailyRevenue(ctx context.Context, date string) (*models.DailyRevenue, error) {
	day, from, to, err := s.DayBounds(date)
	if err != nil {
		return nil, err
	}
	revenue, count, err := s.repo.RevenueBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &models.DailyRevenue{Date: day, Revenue: revenue, BillCount: count}, nil
}

func (s *RevenueService) RevenueByTable(ctx context.Context, date string) ([]models.TableRevenue, error) {
	_, from, to, err := s.DayBounds(date)
	if err != nil {
		return nil, err
	}
	return s.repo.RevenueByTableBetween(ctx, from, to)
}

func (s *RevenueService) ListBills(ctx context.Context, date string) ([]models.Bill, error) {
	_, from, to, err := s.DayBounds(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBillsBetween(ctx, from, to)
}

func (s *RevenueService) GetBill(ctx context.Context, id int64) (*models.Bill, error) {
	return s.repo.GetBill(ctx, id)
}

func (s *RevenueService) DayReport(ctx context.Context, date string) (*models.DayReport, error) {
	daily, err := s.DailyRevenue(ctx, date)
	if err != nil {
		return nil, err
	}
	bills, err := s.ListBills(ctx, daily.Date)
	if err != nil {
		return nil, err
	}
	byTable, err := s.RevenueByTable(ctx, daily.Date)
	if err != nil {
		return nil, err
	}
	return &models.DayReport{Daily: *daily, Bills: bills, ByTable: byTable}, nil
}
