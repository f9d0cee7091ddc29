package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/openlearn/outline-service/internal/models"
)

type outlineRepository struct {
	db *sql.DB
}

// NewOutlineRepository creates a new outline repository
func NewOutlineRepository(db *sql.DB) *outlineRepository {
	return &outlineRepository{
		db: db,
	}
}

// GetLearningContext retrieves the learning context row for a course run
func (r *outlineRepository) GetLearningContext(ctx context.Context, courseKey models.CourseKey) (*models.LearningContext, error) {
	query := `
		SELECT id, context_key, title, published_at, published_version
		FROM learning_contexts
		WHERE context_key = ?
		LIMIT 1
	`

	var (
		lc         models.LearningContext
		contextKey string
	)
	err := r.db.QueryRowContext(ctx, query, courseKey.String()).Scan(
		&lc.ID,
		&contextKey,
		&lc.Title,
		&lc.PublishedAt,
		&lc.PublishedVersion,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", models.ErrOutlineNotFound, courseKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learning context: %w", err)
	}

	key, err := models.ParseCourseKey(contextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored context key: %w", err)
	}
	lc.CourseKey = key

	return &lc, nil
}

// ListSections retrieves all sections of a learning context in stored order
func (r *outlineRepository) ListSections(ctx context.Context, learningContextID int64) ([]models.SectionRow, error) {
	query := `
		SELECT id, usage_key, title, hide_from_toc, visible_to_staff_only
		FROM course_sections
		WHERE learning_context_id = ?
		ORDER BY ordering
	`

	rows, err := r.db.QueryContext(ctx, query, learningContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []models.SectionRow
	for rows.Next() {
		var section models.SectionRow
		if err := rows.Scan(
			&section.ID,
			&section.UsageKey,
			&section.Title,
			&section.HideFromTOC,
			&section.VisibleToStaffOnly,
		); err != nil {
			return nil, fmt.Errorf("failed to scan section row: %w", err)
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section rows: %w", err)
	}

	return sections, nil
}

// ListSectionSequences retrieves all section-sequence join rows of a learning
// context in stored order, with the sequence details attached
func (r *outlineRepository) ListSectionSequences(ctx context.Context, learningContextID int64) ([]models.SectionSequenceRow, error) {
	query := `
		SELECT css.section_id, ls.usage_key, ls.title, css.hide_from_toc, css.visible_to_staff_only
		FROM course_section_sequences css
		JOIN learning_sequences ls ON ls.id = css.sequence_id
		WHERE css.learning_context_id = ?
		ORDER BY css.ordering
	`

	rows, err := r.db.QueryContext(ctx, query, learningContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list section sequences: %w", err)
	}
	defer rows.Close()

	var sequences []models.SectionSequenceRow
	for rows.Next() {
		var seq models.SectionSequenceRow
		if err := rows.Scan(
			&seq.SectionID,
			&seq.UsageKey,
			&seq.Title,
			&seq.HideFromTOC,
			&seq.VisibleToStaffOnly,
		); err != nil {
			return nil, fmt.Errorf("failed to scan section sequence row: %w", err)
		}
		sequences = append(sequences, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section sequence rows: %w", err)
	}

	return sequences, nil
}

// ReplaceOutline replaces all stored rows of a course outline in one
// transaction. No partial outline is ever visible to readers: any failing
// step rolls the whole replacement back.
func (r *outlineRepository) ReplaceOutline(ctx context.Context, outline *models.CourseOutline) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	contextID, err := upsertLearningContext(ctx, tx, outline)
	if err != nil {
		return err
	}

	// Wipe the join table first so stale sections and sequences can be
	// deleted without foreign key trouble.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM course_section_sequences WHERE learning_context_id = ?`,
		contextID,
	); err != nil {
		return fmt.Errorf("failed to delete section sequence rows: %w", err)
	}

	sectionIDs, err := upsertSections(ctx, tx, contextID, outline)
	if err != nil {
		return err
	}

	sequenceIDs, err := upsertSequences(ctx, tx, contextID, outline)
	if err != nil {
		return err
	}

	if err := insertSectionSequences(ctx, tx, contextID, outline, sectionIDs, sequenceIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outline replacement: %w", err)
	}

	return nil
}

// upsertLearningContext creates or updates the learning context row and
// returns its id
func upsertLearningContext(ctx context.Context, tx *sql.Tx, outline *models.CourseOutline) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO learning_contexts (context_key, title, published_at, published_version)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			title = VALUES(title),
			published_at = VALUES(published_at),
			published_version = VALUES(published_version)
	`,
		outline.CourseKey.String(),
		outline.Title,
		outline.PublishedAt,
		outline.PublishedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert learning context: %w", err)
	}

	contextID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get learning context id: %w", err)
	}

	return contextID, nil
}

// upsertSections writes the section rows in input order and deletes stored
// sections absent from the new outline. Returns usage key -> row id.
func upsertSections(ctx context.Context, tx *sql.Tx, contextID int64, outline *models.CourseOutline) (map[models.UsageKey]int64, error) {
	sectionIDs := make(map[models.UsageKey]int64, len(outline.Sections))
	for order, section := range outline.Sections {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO course_sections
				(learning_context_id, usage_key, title, ordering, hide_from_toc, visible_to_staff_only)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				id = LAST_INSERT_ID(id),
				title = VALUES(title),
				ordering = VALUES(ordering),
				hide_from_toc = VALUES(hide_from_toc),
				visible_to_staff_only = VALUES(visible_to_staff_only)
		`,
			contextID,
			section.UsageKey.String(),
			section.Title,
			order,
			outline.Visibility.HideFromTOC.Contains(section.UsageKey),
			outline.Visibility.VisibleToStaffOnly.Contains(section.UsageKey),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert section %s: %w", section.UsageKey, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get section id: %w", err)
		}
		sectionIDs[section.UsageKey] = id
	}

	keep := make([]models.UsageKey, 0, len(outline.Sections))
	for _, section := range outline.Sections {
		keep = append(keep, section.UsageKey)
	}
	if err := deleteStaleRows(ctx, tx, "course_sections", contextID, keep); err != nil {
		return nil, fmt.Errorf("failed to delete stale sections: %w", err)
	}

	return sectionIDs, nil
}

// upsertSequences writes the sequence rows from the flat index and deletes
// stored sequences absent from it. Returns usage key -> row id.
func upsertSequences(ctx context.Context, tx *sql.Tx, contextID int64, outline *models.CourseOutline) (map[models.UsageKey]int64, error) {
	sequenceIDs := make(map[models.UsageKey]int64, len(outline.Sequences))
	for _, section := range outline.Sections {
		for _, seq := range section.Sequences {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO learning_sequences (learning_context_id, usage_key, title)
				VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE
					id = LAST_INSERT_ID(id),
					title = VALUES(title)
			`,
				contextID,
				seq.UsageKey.String(),
				seq.Title,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to upsert sequence %s: %w", seq.UsageKey, err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to get sequence id: %w", err)
			}
			sequenceIDs[seq.UsageKey] = id
		}
	}

	keep := make([]models.UsageKey, 0, len(outline.Sequences))
	for key := range outline.Sequences {
		keep = append(keep, key)
	}
	if err := deleteStaleRows(ctx, tx, "learning_sequences", contextID, keep); err != nil {
		return nil, fmt.Errorf("failed to delete stale sequences: %w", err)
	}

	return sequenceIDs, nil
}

// insertSectionSequences re-creates the join rows reflecting the final state
// of the sections and sequences written above
func insertSectionSequences(
	ctx context.Context,
	tx *sql.Tx,
	contextID int64,
	outline *models.CourseOutline,
	sectionIDs map[models.UsageKey]int64,
	sequenceIDs map[models.UsageKey]int64,
) error {
	order := 0
	for _, section := range outline.Sections {
		for _, seq := range section.Sequences {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO course_section_sequences
					(learning_context_id, section_id, sequence_id, ordering, hide_from_toc, visible_to_staff_only)
				VALUES (?, ?, ?, ?, ?, ?)
			`,
				contextID,
				sectionIDs[section.UsageKey],
				sequenceIDs[seq.UsageKey],
				order,
				outline.Visibility.HideFromTOC.Contains(seq.UsageKey),
				outline.Visibility.VisibleToStaffOnly.Contains(seq.UsageKey),
			)
			if err != nil {
				return fmt.Errorf("failed to insert section sequence row: %w", err)
			}
			order++
		}
	}
	return nil
}

// deleteStaleRows deletes the rows of a learning context whose usage key is
// absent from keep
func deleteStaleRows(ctx context.Context, tx *sql.Tx, table string, contextID int64, keep []models.UsageKey) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE learning_context_id = ?", table),
			contextID,
		)
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ")
	args := make([]any, 0, len(keep)+1)
	args = append(args, contextID)
	for _, key := range keep {
		args = append(args, key.String())
	}

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE learning_context_id = ? AND usage_key NOT IN (%s)",
		table, placeholders,
	)
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
