package models

import "time"

// Activity represents an extracurricular activity in the catalog.
type Activity struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ActivitySummary is the compact projection joined onto achievements.
type ActivitySummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
