// Package repository persists campaigns.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autodial_backend/internal/campaigns/domain"
	"autodial_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Campaign is one outbound dialing campaign.
type Campaign struct {
	ID                    uuid.UUID
	Name                  string
	OwnerID               uuid.UUID
	Status                domain.Status
	CallerID              string
	Trunk                 string
	RouteName             string
	CallConcurrency       int
	TotalNumbers          int
	ProcessedNumbers      int
	IntakeObjectKey       string
	NotificationChatID    int64
	NotificationMessageID int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
}

// Repository provides database operations for campaigns.
type Repository struct {
	pool *pgxpool.Pool
}

const campaignNotFoundMsg = "campaign not found"

// New creates a new campaign repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateParams describes a new campaign.
type CreateParams struct {
	Name               string
	OwnerID            uuid.UUID
	CallerID           string
	Trunk              string
	RouteName          string
	CallConcurrency    int
	TotalNumbers       int
	NotificationChatID int64
}

const campaignSelectCols = `
	id, name, owner_id, status, caller_id, trunk, route_name,
	call_concurrency, total_numbers, processed_numbers, intake_object_key,
	notification_chat_id, notification_message_id,
	created_at, updated_at, started_at, completed_at`

// Create inserts a campaign in pending status.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Campaign, error) {
	query := `
		INSERT INTO dial_campaigns (
			name, owner_id, status, caller_id, trunk, route_name,
			call_concurrency, total_numbers, notification_chat_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + campaignSelectCols

	c, err := scanCampaign(r.pool.QueryRow(ctx, query,
		params.Name, params.OwnerID, domain.StatusPending, params.CallerID,
		params.Trunk, params.RouteName, params.CallConcurrency,
		params.TotalNumbers, params.NotificationChatID,
	))
	if err != nil {
		return Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return c, nil
}

type campaignRowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s campaignRowScanner) (Campaign, error) {
	var c Campaign
	err := s.Scan(
		&c.ID, &c.Name, &c.OwnerID, &c.Status, &c.CallerID, &c.Trunk,
		&c.RouteName, &c.CallConcurrency, &c.TotalNumbers, &c.ProcessedNumbers,
		&c.IntakeObjectKey, &c.NotificationChatID, &c.NotificationMessageID,
		&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.CompletedAt,
	)
	return c, err
}

// GetByID retrieves a campaign. Ownership checks belong to the service
// layer; the dispatch worker loads campaigns without an operator context.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		`SELECT`+campaignSelectCols+` FROM dial_campaigns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMsg)
		}
		return Campaign{}, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// ListByOwner returns an operator's campaigns, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+campaignSelectCols+` FROM dial_campaigns
		 WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read campaigns: %w", err)
	}
	return campaigns, nil
}

// Rename updates a campaign's name.
func (r *Repository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE dial_campaigns SET name = $2, updated_at = now() WHERE id = $1`,
		id, name)
	if err != nil {
		return fmt.Errorf("failed to rename campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// UpdateStatus moves a campaign to the given status, guarding the lifecycle
// transition in the same statement. Returns a conflict when the transition
// is not allowed from the campaign's current status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []domain.Status, to domain.Status) error {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `UPDATE dial_campaigns SET status = $2, updated_at = now()`
	switch to {
	case domain.StatusActive:
		query += `, started_at = COALESCE(started_at, now())`
	case domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled:
		query += `, completed_at = now()`
	}
	query += ` WHERE id = $1 AND status = ANY($3)`

	result, err := r.pool.Exec(ctx, query, id, to, fromStrs)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("campaign is not in a state that allows moving to %s", to))
	}
	return nil
}

// SetProcessed records how many of the campaign's calls have reached a
// terminal status.
func (r *Repository) SetProcessed(ctx context.Context, id uuid.UUID, processed int) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE dial_campaigns SET processed_numbers = $2, updated_at = now() WHERE id = $1`,
		id, processed)
	if err != nil {
		return fmt.Errorf("failed to update campaign progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// SetIntakeObjectKey stores where the raw number list was archived.
func (r *Repository) SetIntakeObjectKey(ctx context.Context, id uuid.UUID, key string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE dial_campaigns SET intake_object_key = $2, updated_at = now() WHERE id = $1`,
		id, key)
	if err != nil {
		return fmt.Errorf("failed to store intake object key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}

// SetNotificationMessage stores the chat and message the progress render is
// edited into.
func (r *Repository) SetNotificationMessage(ctx context.Context, id uuid.UUID, chatID, messageID int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE dial_campaigns
		SET notification_chat_id = $2, notification_message_id = $3, updated_at = now()
		WHERE id = $1`,
		id, chatID, messageID)
	if err != nil {
		return fmt.Errorf("failed to store notification message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(campaignNotFoundMsg)
	}
	return nil
}
