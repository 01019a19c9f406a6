package dto

import "github.com/noah-isme/sma-achievement-api/internal/models"

// StatusBreakdown holds achievement totals keyed by review state.
type StatusBreakdown struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// StudentDashboardResponse summarises the caller's own ledger.
type StudentDashboardResponse struct {
	Breakdown StatusBreakdown            `json:"breakdown"`
	Recent    []models.AchievementDetail `json:"recent"`
}

// AdminDashboardResponse summarises the whole ledger for review staff.
type AdminDashboardResponse struct {
	Breakdown    StatusBreakdown            `json:"breakdown"`
	ByActivity   []models.ActivityCount     `json:"by_activity"`
	PendingQueue []models.AchievementDetail `json:"pending_queue"`
}
