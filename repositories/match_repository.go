package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/openmat/openmat-api/models"
)

var (
	ErrMatchCategoryInvalid = errors.New("match category reference invalid")
	ErrMatchAthleteInvalid  = errors.New("match athlete reference invalid")
)

// MatchRepository is the persistence sink for frozen brackets. Matches are
// only ever inserted by the lock transition and bulk-deleted by the unlock
// transition; nothing updates them structurally here.
type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	ListByCategory(ctx context.Context, eventID, categoryID int) ([]*models.Match, error)
	CountByEvent(ctx context.Context, eventID int) (int, error)
	DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(event_id, category_id, round, match_no, slot_a, slot_b,
			 athlete_a_id, athlete_b_id, winner_id, is_bye, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		m.EventID, m.CategoryID, m.Round, m.MatchNo, m.SlotA, m.SlotB,
		m.AthleteAID, m.AthleteBID, m.WinnerID, m.IsBye, m.Status,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			switch pqErr.Constraint {
			case "matches_category_id_fkey", "matches_event_id_fkey":
				return ErrMatchCategoryInvalid
			case "matches_athlete_a_id_fkey", "matches_athlete_b_id_fkey", "matches_winner_id_fkey":
				return ErrMatchAthleteInvalid
			}
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) ListByCategory(ctx context.Context, eventID, categoryID int) ([]*models.Match, error) {
	query := `
		SELECT m.id, m.event_id, m.category_id, m.round, m.match_no, m.slot_a, m.slot_b,
		       m.athlete_a_id, m.athlete_b_id, m.winner_id, m.is_bye, m.status, m.created_at,
		       a.first_name || CASE WHEN a.last_name = '' THEN '' ELSE ' ' || a.last_name END,
		       b.first_name || CASE WHEN b.last_name = '' THEN '' ELSE ' ' || b.last_name END
		FROM matches m
		LEFT JOIN users a ON a.id = m.athlete_a_id
		LEFT JOIN users b ON b.id = m.athlete_b_id
		WHERE m.event_id = $1 AND m.category_id = $2
		ORDER BY m.round ASC, m.match_no ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if scanErr := rows.Scan(
			&m.ID, &m.EventID, &m.CategoryID, &m.Round, &m.MatchNo, &m.SlotA, &m.SlotB,
			&m.AthleteAID, &m.AthleteBID, &m.WinnerID, &m.IsBye, &m.Status, &m.CreatedAt,
			&m.AthleteAName, &m.AthleteBName,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) CountByEvent(ctx context.Context, eventID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches for event %d: %w", eventID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) DeleteByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM matches WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete matches for event %d: %w", eventID, err)
	}
	return nil
}
