package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openlearn/outline-service/internal/models"
)

type courseDatesRepository struct {
	db *sql.DB
}

// NewCourseDatesRepository creates a new course dates repository
func NewCourseDatesRepository(db *sql.DB) *courseDatesRepository {
	return &courseDatesRepository{
		db: db,
	}
}

// GetDatesForCourse retrieves the (usage key, field) -> date mapping for a
// course and user. Course-wide policy rows are returned first and overridden
// by rows specific to the user.
func (r *courseDatesRepository) GetDatesForCourse(ctx context.Context, courseKey models.CourseKey, userID int) (map[models.DateKey]time.Time, error) {
	query := `
		SELECT cd.usage_key, cd.field_name, cd.date
		FROM course_dates cd
		JOIN learning_contexts lc ON lc.id = cd.learning_context_id
		WHERE lc.context_key = ? AND (cd.user_id IS NULL OR cd.user_id = ?)
		ORDER BY (cd.user_id IS NULL) DESC
	`

	rows, err := r.db.QueryContext(ctx, query, courseKey.String(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dates for course: %w", err)
	}
	defer rows.Close()

	dates := make(map[models.DateKey]time.Time)
	for rows.Next() {
		var (
			usageKey  models.UsageKey
			fieldName string
			date      time.Time
		)
		if err := rows.Scan(&usageKey, &fieldName, &date); err != nil {
			return nil, fmt.Errorf("failed to scan course date row: %w", err)
		}
		dates[models.DateKey{UsageKey: usageKey, Field: fieldName}] = date
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate course date rows: %w", err)
	}

	return dates, nil
}
