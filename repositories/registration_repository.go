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
	ErrRegistrationNotFound        = errors.New("registration not found")
	ErrRegistrationConflict        = errors.New("athlete is already registered for this category")
	ErrRegistrationAthleteInvalid  = errors.New("registration athlete reference invalid")
	ErrRegistrationCategoryInvalid = errors.New("registration category reference invalid")
	ErrRegistrationSlotConflict    = errors.New("bracket slot is already taken in this category")
)

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	// ListPaidByCategory returns paid registrations with athlete names
	// joined, ordered by created_at then id so seeding stays deterministic.
	ListPaidByCategory(ctx context.Context, exec SQLExecutor, eventID, categoryID int) ([]*models.Registration, error)
	UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error
	UpdateSlot(ctx context.Context, exec SQLExecutor, id, slot int) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (athlete_id, event_id, category_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.AthleteID, reg.EventID, reg.CategoryID, reg.Status,
	).Scan(&reg.ID, &reg.CreatedAt)

	return r.handleRegistrationError(err, "create registration")
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	query := `
		SELECT id, athlete_id, event_id, category_id, status, bracket_slot, created_at
		FROM registrations
		WHERE id = $1`

	reg := &models.Registration{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.AthleteID, &reg.EventID, &reg.CategoryID,
		&reg.Status, &reg.BracketSlot, &reg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to scan registration %d: %w", id, err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) ListPaidByCategory(ctx context.Context, exec SQLExecutor, eventID, categoryID int) ([]*models.Registration, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT r.id, r.athlete_id, r.event_id, r.category_id, r.status, r.bracket_slot, r.created_at,
		       u.first_name || CASE WHEN u.last_name = '' THEN '' ELSE ' ' || u.last_name END
		FROM registrations r
		JOIN users u ON u.id = r.athlete_id
		WHERE r.event_id = $1 AND r.category_id = $2 AND r.status = $3
		ORDER BY r.created_at ASC, r.id ASC`

	rows, err := executor.QueryContext(ctx, query, eventID, categoryID, models.RegistrationPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to query paid registrations for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	registrations := make([]*models.Registration, 0)
	for rows.Next() {
		reg := &models.Registration{}
		if scanErr := rows.Scan(
			&reg.ID, &reg.AthleteID, &reg.EventID, &reg.CategoryID,
			&reg.Status, &reg.BracketSlot, &reg.CreatedAt, &reg.AthleteName,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", scanErr)
		}
		registrations = append(registrations, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during registration rows iteration: %w", err)
	}
	return registrations, nil
}

func (r *postgresRegistrationRepository) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update registration %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateSlot(ctx context.Context, exec SQLExecutor, id, slot int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE registrations SET bracket_slot = $1 WHERE id = $2`, slot, id)
	if err != nil {
		return r.handleRegistrationError(err, fmt.Sprintf("update slot for registration %d", id))
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) handleRegistrationError(err error, op string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "registrations_category_slot_key" {
				return ErrRegistrationSlotConflict
			}
			return ErrRegistrationConflict
		case "23503": // foreign_key_violation
			switch pqErr.Constraint {
			case "registrations_athlete_id_fkey":
				return ErrRegistrationAthleteInvalid
			case "registrations_category_id_fkey", "registrations_event_id_fkey":
				return ErrRegistrationCategoryInvalid
			}
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
