package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-achievement-api/internal/models"
)

// ActivityRepository provides database access for the activity catalog.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new instance of ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// List returns the full catalog ordered by name.
func (r *ActivityRepository) List(ctx context.Context) ([]models.Activity, error) {
	const query = `SELECT id, name, category, description, created_at, updated_at FROM activities ORDER BY name ASC`
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// FindByID returns an activity by identifier.
func (r *ActivityRepository) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	const query = `SELECT id, name, category, description, created_at, updated_at FROM activities WHERE id = $1 LIMIT 1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find activity by id: %w", err)
	}
	return &activity, nil
}

// ExistsByName reports whether a catalog entry with the given name exists,
// optionally excluding one id (for updates).
func (r *ActivityRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM activities WHERE name = $1 AND ($2 = '' OR id <> $2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check activity name: %w", err)
	}
	return exists, nil
}

// Create inserts a new activity.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now

	const query = `INSERT INTO activities (id, name, category, description, created_at, updated_at) VALUES (:id, :name, :category, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update updates mutable fields of an activity.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) error {
	activity.UpdatedAt = time.Now().UTC()
	const query = `UPDATE activities SET name = :name, category = :category, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// Delete removes an activity from the catalog.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM activities WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// CountReferences returns the number of achievements referencing the activity.
func (r *ActivityRepository) CountReferences(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM achievements WHERE activity_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count activity references: %w", err)
	}
	return count, nil
}
