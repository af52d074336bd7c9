package service

import (
	"context"

	"backend/internal/model"

	"gorm.io/gorm"
)

// DashboardSummary aggregates request counts and amounts for the dashboard
// view: per-status totals plus a monthly series for the chart.
type DashboardSummary struct {
	TotalRequests  int64          `json:"total_requests"`
	PendingCount   int64          `json:"pending_count"`
	ApprovedCount  int64          `json:"approved_count"`
	RejectedCount  int64          `json:"rejected_count"`
	TotalAmount    float64        `json:"total_amount"`
	PendingAmount  float64        `json:"pending_amount"`
	ApprovedAmount float64        `json:"approved_amount"`
	Monthly        []MonthlyPoint `json:"monthly"`
}

// MonthlyPoint is one month's request volume, newest last.
type MonthlyPoint struct {
	Month  string  `json:"month"` // YYYY-MM
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type DashboardService interface {
	GetSummary(ctx context.Context, actor Actor) (DashboardSummary, error)
}

type dashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) DashboardService {
	return &dashboardService{db: db}
}

// GetSummary computes the aggregates with the same creator scoping as list
// endpoints: staff only sees its own requests.
func (s *dashboardService) GetSummary(ctx context.Context, actor Actor) (DashboardSummary, error) {
	var summary DashboardSummary

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.PurchaseRequest{})
		if !model.CanSeeAllRequests(actor.Role) {
			q = q.Where("created_by_id = ?", actor.ID)
		}
		return q
	}

	type statusRow struct {
		Status string
		Count  int64
		Amount float64
	}
	var rows []statusRow
	if err := base().
		Select("status, COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Group("status").
		Scan(&rows).Error; err != nil {
		return summary, err
	}

	for _, row := range rows {
		summary.TotalRequests += row.Count
		summary.TotalAmount += row.Amount
		switch row.Status {
		case model.StatusPending:
			summary.PendingCount = row.Count
			summary.PendingAmount = row.Amount
		case model.StatusApproved:
			summary.ApprovedCount = row.Count
			summary.ApprovedAmount = row.Amount
		case model.StatusRejected:
			summary.RejectedCount = row.Count
		}
	}

	var monthly []MonthlyPoint
	if err := base().
		Select("to_char(created_at, 'YYYY-MM') as month, COUNT(*) as count, COALESCE(SUM(amount), 0) as amount").
		Group("to_char(created_at, 'YYYY-MM')").
		Order("month ASC").
		Limit(12).
		Scan(&monthly).Error; err != nil {
		return summary, err
	}
	summary.Monthly = monthly
	if summary.Monthly == nil {
		summary.Monthly = []MonthlyPoint{}
	}

	return summary, nil
}
