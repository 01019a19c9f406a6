package models

import "time"

// AchievementStatus enumerates the review states of a submission.
type AchievementStatus string

const (
	StatusPending  AchievementStatus = "Pending"
	StatusApproved AchievementStatus = "Approved"
	StatusRejected AchievementStatus = "Rejected"
)

// Valid reports whether the status is one of the three review states.
func (s AchievementStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Achievement represents a submitted extracurricular achievement.
type Achievement struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	ActivityID  string            `db:"activity_id" json:"activity_id"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description"`
	Date        time.Time         `db:"date" json:"date"`
	Proof       *string           `db:"proof" json:"proof,omitempty"`
	Status      AchievementStatus `db:"status" json:"status"`
	AdminNotes  *string           `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AchievementDetail joins the owning user and the referenced activity onto
// the achievement record for list and detail responses.
type AchievementDetail struct {
	Achievement
	User     UserSummary     `json:"user"`
	Activity ActivitySummary `json:"activity"`
}

// AchievementFilter captures filtering criteria for listing achievements.
type AchievementFilter struct {
	UserID     string
	ActivityID string
	Status     *AchievementStatus
	Page       int
	PageSize   int
}

// StatusCount pairs a review state with the number of records in it.
type StatusCount struct {
	Status AchievementStatus `db:"status" json:"status"`
	Count  int               `db:"count" json:"count"`
}

// ActivityCount pairs an activity with its total submissions.
type ActivityCount struct {
	ActivityID   string `db:"activity_id" json:"activity_id"`
	ActivityName string `db:"activity_name" json:"activity_name"`
	Count        int    `db:"count" json:"count"`
}
