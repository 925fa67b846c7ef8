// Package repository persists operator accounts and their dial settings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodial_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Operator is one account that can mint tokens and run campaigns. ChatID is
// the operator's notification channel; dial defaults live in Settings.
type Operator struct {
	ID         uuid.UUID
	Name       string
	APIKeyHash string
	ChatID     int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Settings are the per-operator dial defaults applied when a campaign omits
// them.
type Settings struct {
	CallerID                string
	Trunk                   string
	RouteName               string
	CallConcurrency         int
	IndividualNotifications bool
}

// Repository provides database operations for operators.
type Repository struct {
	pool *pgxpool.Pool
}

const operatorNotFoundMsg = "operator not found"

// New creates a new operator repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const operatorSelectCols = `
	id, name, api_key_hash, chat_id, created_at, updated_at`

type operatorRowScanner interface {
	Scan(dest ...any) error
}

func scanOperator(s operatorRowScanner) (Operator, error) {
	var o Operator
	err := s.Scan(&o.ID, &o.Name, &o.APIKeyHash, &o.ChatID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Create inserts an operator with an already-hashed API key and a default
// settings row.
func (r *Repository) Create(ctx context.Context, name, apiKeyHash string) (Operator, error) {
	var op Operator
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Operator{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	op, err = scanOperator(tx.QueryRow(ctx, `
		INSERT INTO dial_operators (name, api_key_hash)
		VALUES ($1, $2)
		RETURNING`+operatorSelectCols, name, apiKeyHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Operator{}, apperr.Conflict("operator name already taken")
		}
		return Operator{}, fmt.Errorf("failed to create operator: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO dial_operator_settings (operator_id)
		VALUES ($1)
		ON CONFLICT (operator_id) DO NOTHING
	`, op.ID); err != nil {
		return Operator{}, fmt.Errorf("failed to create operator settings: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return Operator{}, err
	}

	return op, nil
}

// GetByName looks an operator up by its unique login name.
func (r *Repository) GetByName(ctx context.Context, name string) (Operator, error) {
	op, err := scanOperator(r.pool.QueryRow(ctx,
		`SELECT`+operatorSelectCols+` FROM dial_operators WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, apperr.NotFound(operatorNotFoundMsg)
		}
		return Operator{}, fmt.Errorf("failed to get operator by name: %w", err)
	}
	return op, nil
}

// GetByID retrieves an operator by primary key.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Operator, error) {
	op, err := scanOperator(r.pool.QueryRow(ctx,
		`SELECT`+operatorSelectCols+` FROM dial_operators WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Operator{}, apperr.NotFound(operatorNotFoundMsg)
		}
		return Operator{}, fmt.Errorf("failed to get operator: %w", err)
	}
	return op, nil
}

// GetSettings loads an operator's dial settings.
func (r *Repository) GetSettings(ctx context.Context, operatorID uuid.UUID) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT caller_id, trunk, route_name, call_concurrency, individual_notifications
		FROM dial_operator_settings
		WHERE operator_id = $1
	`, operatorID).Scan(&s.CallerID, &s.Trunk, &s.RouteName, &s.CallConcurrency, &s.IndividualNotifications)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, apperr.NotFound(operatorNotFoundMsg)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get operator settings: %w", err)
	}
	return s, nil
}

// UpdateSettings replaces the operator's dial settings and notification
// channel. The service merges partial updates onto the current values before
// calling it.
func (r *Repository) UpdateSettings(ctx context.Context, operatorID uuid.UUID, chatID int64, s Settings) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	result, err := tx.Exec(ctx, `
		UPDATE dial_operators SET chat_id = $2, updated_at = now()
		WHERE id = $1
	`, operatorID, chatID)
	if err != nil {
		return fmt.Errorf("failed to update operator: %w", err)
	}
	if result.RowsAffected() == 0 {
		err = apperr.NotFound(operatorNotFoundMsg)
		return err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO dial_operator_settings
			(operator_id, caller_id, trunk, route_name, call_concurrency, individual_notifications)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (operator_id) DO UPDATE
		SET caller_id = EXCLUDED.caller_id,
			trunk = EXCLUDED.trunk,
			route_name = EXCLUDED.route_name,
			call_concurrency = EXCLUDED.call_concurrency,
			individual_notifications = EXCLUDED.individual_notifications,
			updated_at = now()
	`, operatorID, s.CallerID, s.Trunk, s.RouteName, s.CallConcurrency, s.IndividualNotifications); err != nil {
		return fmt.Errorf("failed to update operator settings: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateAPIKeyHash stores a new API key hash, invalidating the previous key.
func (r *Repository) UpdateAPIKeyHash(ctx context.Context, id uuid.UUID, apiKeyHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dial_operators SET api_key_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, apiKeyHash)
	if err != nil {
		return fmt.Errorf("failed to update operator api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(operatorNotFoundMsg)
	}
	return nil
}
