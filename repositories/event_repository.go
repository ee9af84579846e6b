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
	ErrEventNotFound         = errors.New("event not found")
	ErrEventOrganizerInvalid = errors.New("event organizer reference invalid")
)

type ListEventsFilter struct {
	OrganizerID *int
	OpenOnly    bool
	Limit       int
	Offset      int
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int) (*models.Event, error)
	List(ctx context.Context, filter ListEventsFilter) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	SetOpenForInscriptions(ctx context.Context, exec SQLExecutor, id int, open bool) error
	UpdatePosterKey(ctx context.Context, id int, posterKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const eventColumns = `
	id, name, description, organizer_id, location, start_date, end_date,
	is_open_for_inscriptions, poster_key, created_at
	`

func (r *postgresEventRepository) Create(ctx context.Context, e *models.Event) error {
	query := `
		INSERT INTO events (name, description, organizer_id, location, start_date, end_date, is_open_for_inscriptions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		e.Name, e.Description, e.OrganizerID, e.Location, e.StartDate, e.EndDate, e.IsOpenForInscriptions,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrEventOrganizerInvalid
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	query := `SELECT` + eventColumns + `FROM events WHERE id = $1`

	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.Description, &e.OrganizerID, &e.Location,
		&e.StartDate, &e.EndDate, &e.IsOpenForInscriptions, &e.PosterKey, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event %d: %w", id, err)
	}
	return e, nil
}

func (r *postgresEventRepository) List(ctx context.Context, filter ListEventsFilter) ([]models.Event, error) {
	query := `SELECT` + eventColumns + `FROM events WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.OpenOnly {
		query += " AND is_open_for_inscriptions = TRUE"
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if scanErr := rows.Scan(
			&e.ID, &e.Name, &e.Description, &e.OrganizerID, &e.Location,
			&e.StartDate, &e.EndDate, &e.IsOpenForInscriptions, &e.PosterKey, &e.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", scanErr)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during event rows iteration: %w", err)
	}
	return events, nil
}

func (r *postgresEventRepository) Update(ctx context.Context, e *models.Event) error {
	query := `
		UPDATE events
		SET name = $1, description = $2, location = $3, start_date = $4, end_date = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		e.Name, e.Description, e.Location, e.StartDate, e.EndDate, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event %d: %w", e.ID, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) SetOpenForInscriptions(ctx context.Context, exec SQLExecutor, id int, open bool) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE events SET is_open_for_inscriptions = $1 WHERE id = $2`, open, id)
	if err != nil {
		return fmt.Errorf("failed to set registration window for event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) UpdatePosterKey(ctx context.Context, id int, posterKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET poster_key = $1 WHERE id = $2`, posterKey, id)
	if err != nil {
		return fmt.Errorf("failed to update poster key for event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}

func (r *postgresEventRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEventNotFound)
}
