package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/openmat/openmat-api/models"
)

var (
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryEventInvalid = errors.New("category event reference invalid")
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int) (*models.Category, error)
	// GetForUpdate takes a row lock on the category so concurrent seeding
	// repairs for the same bracket serialize. Must run inside a transaction.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Category, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.Category, error)
	// UpdateCapacity grows the bracket capacity. The write is monotonic:
	// a concurrent repair that already grew further is never overwritten.
	UpdateCapacity(ctx context.Context, exec SQLExecutor, id, capacity int) error
	SetLocked(ctx context.Context, exec SQLExecutor, id int, locked bool, lockedAt *time.Time) error
	UnlockByEvent(ctx context.Context, exec SQLExecutor, eventID int) error
	Delete(ctx context.Context, id int) error
}

type postgresCategoryRepository struct {
	db *sql.DB
}

func NewPostgresCategoryRepository(db *sql.DB) CategoryRepository {
	return &postgresCategoryRepository{db: db}
}

func (r *postgresCategoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const categoryColumns = `
	id, event_id, name, belt, age_division, weight_class,
	bracket_capacity, is_locked, locked_at, created_at
	`

func (r *postgresCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (event_id, name, belt, age_division, weight_class, bracket_capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		c.EventID, c.Name, c.Belt, c.AgeDivision, c.WeightClass, c.BracketCapacity,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrCategoryEventInvalid
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *postgresCategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	query := `SELECT` + categoryColumns + `FROM categories WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), id)
}

func (r *postgresCategoryRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Category, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + categoryColumns + `FROM categories WHERE id = $1 FOR UPDATE`
	return r.scanOne(executor.QueryRowContext(ctx, query, id), id)
}

func (r *postgresCategoryRepository) scanOne(row *sql.Row, id int) (*models.Category, error) {
	c := &models.Category{}
	err := row.Scan(
		&c.ID, &c.EventID, &c.Name, &c.Belt, &c.AgeDivision, &c.WeightClass,
		&c.BracketCapacity, &c.IsLocked, &c.LockedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to scan category %d: %w", id, err)
	}
	return c, nil
}

func (r *postgresCategoryRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Category, error) {
	query := `SELECT` + categoryColumns + `FROM categories WHERE event_id = $1 ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories for event %d: %w", eventID, err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c := &models.Category{}
		if scanErr := rows.Scan(
			&c.ID, &c.EventID, &c.Name, &c.Belt, &c.AgeDivision, &c.WeightClass,
			&c.BracketCapacity, &c.IsLocked, &c.LockedAt, &c.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", scanErr)
		}
		categories = append(categories, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during category rows iteration: %w", err)
	}
	return categories, nil
}

func (r *postgresCategoryRepository) UpdateCapacity(ctx context.Context, exec SQLExecutor, id, capacity int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE categories SET bracket_capacity = GREATEST(bracket_capacity, $1) WHERE id = $2`,
		capacity, id)
	if err != nil {
		return fmt.Errorf("failed to update capacity for category %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) SetLocked(ctx context.Context, exec SQLExecutor, id int, locked bool, lockedAt *time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE categories SET is_locked = $1, locked_at = $2 WHERE id = $3`,
		locked, lockedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set lock flag for category %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) UnlockByEvent(ctx context.Context, exec SQLExecutor, eventID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE categories SET is_locked = FALSE, locked_at = NULL WHERE event_id = $1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to unlock categories for event %d: %w", eventID, err)
	}
	return nil
}

func (r *postgresCategoryRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}
