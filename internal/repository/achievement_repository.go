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

// AchievementRepository provides database access for the achievement ledger.
type AchievementRepository struct {
	db *sqlx.DB
}

// NewAchievementRepository creates a new instance of AchievementRepository.
func NewAchievementRepository(db *sqlx.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

type achievementRow struct {
	models.Achievement
	UserName         string  `db:"user_name"`
	UserEmail        string  `db:"user_email"`
	UserStudentID    *string `db:"user_student_id"`
	ActivityName     string  `db:"activity_name"`
	ActivityCategory string  `db:"activity_category"`
}

func (row achievementRow) detail() models.AchievementDetail {
	return models.AchievementDetail{
		Achievement: row.Achievement,
		User: models.UserSummary{
			ID:        row.UserID,
			Name:      row.UserName,
			Email:     row.UserEmail,
			StudentID: row.UserStudentID,
		},
		Activity: models.ActivitySummary{
			ID:       row.ActivityID,
			Name:     row.ActivityName,
			Category: row.ActivityCategory,
		},
	}
}

const achievementDetailColumns = `a.id, a.user_id, a.activity_id, a.title, a.description, a.date, a.proof, a.status, a.admin_notes, a.created_at, a.updated_at,
        u.name AS user_name, u.email AS user_email, u.student_id AS user_student_id,
        act.name AS activity_name, act.category AS activity_category`

const achievementDetailJoins = `FROM achievements a
        JOIN users u ON u.id = a.user_id
        JOIN activities act ON act.id = a.activity_id`

// FindByID returns a single achievement with its joined summaries.
func (r *AchievementRepository) FindByID(ctx context.Context, id string) (*models.AchievementDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE a.id = $1 LIMIT 1`, achievementDetailColumns, achievementDetailJoins)
	var row achievementRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find achievement by id: %w", err)
	}
	detail := row.detail()
	return &detail, nil
}

// List returns achievements matching the filter with joined summaries and a
// total count.
func (r *AchievementRepository) List(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, int, error) {
	where := `WHERE 1=1`
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND a.user_id = $%d", len(args))
	}
	if filter.ActivityID != "" {
		args = append(args, filter.ActivityID)
		where += fmt.Sprintf(" AND a.activity_id = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND a.status = $%d", len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s %s %s ORDER BY a.created_at DESC LIMIT %d OFFSET %d`,
		achievementDetailColumns, achievementDetailJoins, where, pageSize, offset)

	var rows []achievementRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list achievements: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) %s %s`, achievementDetailJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count achievements: %w", err)
	}

	details := make([]models.AchievementDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.detail())
	}
	return details, total, nil
}

// Create inserts a new achievement.
func (r *AchievementRepository) Create(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ID == "" {
		achievement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if achievement.CreatedAt.IsZero() {
		achievement.CreatedAt = now
	}
	achievement.UpdatedAt = now

	const query = `INSERT INTO achievements (id, user_id, activity_id, title, description, date, proof, status, admin_notes, created_at, updated_at) VALUES (:id, :user_id, :activity_id, :title, :description, :date, :proof, :status, :admin_notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, achievement); err != nil {
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an achievement.
func (r *AchievementRepository) Update(ctx context.Context, achievement *models.Achievement) error {
	achievement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE achievements SET activity_id = :activity_id, title = :title, description = :description, date = :date, proof = :proof, status = :status, admin_notes = :admin_notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, achievement); err != nil {
		return fmt.Errorf("update achievement: %w", err)
	}
	return nil
}

// Delete removes an achievement. It returns sql.ErrNoRows when nothing was
// deleted so a second delete of the same id surfaces as not found.
func (r *AchievementRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM achievements WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete achievement: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus aggregates achievement totals per review state, optionally
// scoped to one owner.
func (r *AchievementRepository) CountByStatus(ctx context.Context, userID string) ([]models.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM achievements`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` GROUP BY status`

	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count achievements by status: %w", err)
	}
	return counts, nil
}

// CountByActivity aggregates achievement totals per catalog activity.
func (r *AchievementRepository) CountByActivity(ctx context.Context) ([]models.ActivityCount, error) {
	const query = `SELECT a.activity_id, act.name AS activity_name, COUNT(*) AS count
        FROM achievements a
        JOIN activities act ON act.id = a.activity_id
        GROUP BY a.activity_id, act.name
        ORDER BY count DESC`
	var counts []models.ActivityCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count achievements by activity: %w", err)
	}
	return counts, nil
}
