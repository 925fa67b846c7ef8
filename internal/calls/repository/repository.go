// Package repository persists call records and provides the indexed lookups
// the correlation resolver depends on.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autodial_backend/internal/calls/domain"
	"autodial_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CallRecord represents one outbound call attempt. The PBX-assigned
// identifiers (unique_id, channel_name) start empty and are stamped onto
// the record by the first event that correlates to it.
type CallRecord struct {
	CallID         string
	TrackingID     string
	UniqueID       string
	ChannelName    string
	ActionID       string
	CampaignID     *uuid.UUID
	SequenceNumber int
	TargetNumber   string
	CallerID       string
	Trunk          string
	RouteName      string
	Status         domain.Status
	DTMFDigits     string
	Metadata       map[string]any
	StartTime      *time.Time
	EndTime        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MergeMetadata appends the given entries without discarding history.
// Existing keys are only overwritten when the new value differs; event
// handlers use distinct sub-record keys (dial_begin, dial_end, hangup, ...)
// so appends never destroy earlier entries.
func (c *CallRecord) MergeMetadata(entries map[string]any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, len(entries))
	}
	for k, v := range entries {
		c.Metadata[k] = v
	}
}

// Repository provides database operations for call records.
type Repository struct {
	pool *pgxpool.Pool
}

const recordNotFoundMsg = "call record not found"

// New creates a new call record repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateQueuedParams describes a pre-created call record awaiting dispatch.
type CreateQueuedParams struct {
	CallID         string
	TrackingID     string
	CampaignID     uuid.UUID
	SequenceNumber int
	TargetNumber   string
	CallerID       string
	Trunk          string
	RouteName      string
}

// CreateQueued inserts a single call record in queued status.
func (r *Repository) CreateQueued(ctx context.Context, params CreateQueuedParams) (CallRecord, error) {
	now := time.Now()
	query := `
		INSERT INTO dial_call_records (
			call_id, tracking_id, campaign_id, sequence_number, target_number,
			caller_id, trunk, route_name, status, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		params.CallID, params.TrackingID, params.CampaignID, params.SequenceNumber,
		params.TargetNumber, params.CallerID, params.Trunk, params.RouteName,
		domain.StatusQueued, []byte(`{}`), now, now,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to create call record: %w", err)
	}

	campaignID := params.CampaignID
	return CallRecord{
		CallID:         params.CallID,
		TrackingID:     params.TrackingID,
		CampaignID:     &campaignID,
		SequenceNumber: params.SequenceNumber,
		TargetNumber:   params.TargetNumber,
		CallerID:       params.CallerID,
		Trunk:          params.Trunk,
		RouteName:      params.RouteName,
		Status:         domain.StatusQueued,
		Metadata:       map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CreateQueuedBatch bulk-inserts the pre-created records of a campaign.
// Uses COPY, which is the fastest path for intake lists up to the campaign
// size cap.
func (r *Repository) CreateQueuedBatch(ctx context.Context, batch []CreateQueuedParams) (int64, error) {
	now := time.Now()
	rows := make([][]any, len(batch))
	for i, p := range batch {
		rows[i] = []any{
			p.CallID, p.TrackingID, p.CampaignID, p.SequenceNumber,
			p.TargetNumber, p.CallerID, p.Trunk, p.RouteName,
			string(domain.StatusQueued), []byte(`{}`), now, now,
		}
	}

	count, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"dial_call_records"},
		[]string{
			"call_id", "tracking_id", "campaign_id", "sequence_number",
			"target_number", "caller_id", "trunk", "route_name", "status",
			"metadata", "created_at", "updated_at",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to batch create call records: %w", err)
	}
	return count, nil
}

// CreateUnknown inserts a record for a call this system did not originate,
// kept for forensic visibility when unknown-call tracking is enabled.
func (r *Repository) CreateUnknown(ctx context.Context, uniqueID, channelName, targetNumber string, status domain.Status, metadata map[string]any) (CallRecord, error) {
	now := time.Now()
	callID := fmt.Sprintf("unknown_%s_%d", uniqueID, now.UnixMicro())
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO dial_call_records (
			call_id, unique_id, channel_name, target_number, status, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.pool.Exec(ctx, query,
		callID, uniqueID, channelName, targetNumber, status, metadataJSON, now, now,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to create unknown call record: %w", err)
	}

	return CallRecord{
		CallID:       callID,
		UniqueID:     uniqueID,
		ChannelName:  channelName,
		TargetNumber: targetNumber,
		Status:       status,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

const recordSelectCols = `
	call_id, tracking_id, unique_id, channel_name, action_id, campaign_id,
	sequence_number, target_number, caller_id, trunk, route_name, status,
	dtmf_digits, metadata, start_time, end_time, created_at, updated_at`

// recordRowScanner is satisfied by pgx.Rows and pgx.Row so scanRecord can be
// shared between single-row and multi-row queries.
type recordRowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s recordRowScanner) (CallRecord, error) {
	var rec CallRecord
	var rawMetadata []byte
	if err := s.Scan(
		&rec.CallID, &rec.TrackingID, &rec.UniqueID, &rec.ChannelName,
		&rec.ActionID, &rec.CampaignID, &rec.SequenceNumber, &rec.TargetNumber,
		&rec.CallerID, &rec.Trunk, &rec.RouteName, &rec.Status, &rec.DTMFDigits,
		&rawMetadata, &rec.StartTime, &rec.EndTime, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	if len(rawMetadata) > 0 {
		_ = json.Unmarshal(rawMetadata, &rec.Metadata)
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return rec, nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (CallRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
		}
		return CallRecord{}, fmt.Errorf("failed to query call record: %w", err)
	}
	return rec, nil
}

// GetByCallID retrieves a call record by its primary identifier.
func (r *Repository) GetByCallID(ctx context.Context, callID string) (CallRecord, error) {
	if callID == "" {
		return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
	}
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records WHERE call_id = $1`,
		callID)
}

// GetByUniqueID retrieves the call record carrying the given PBX unique id.
// Empty unique ids are never looked up: they are the sentinel for
// "not yet revealed by the PBX" and would match unrelated records.
func (r *Repository) GetByUniqueID(ctx context.Context, uniqueID string) (CallRecord, error) {
	if uniqueID == "" {
		return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
	}
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE unique_id = $1 ORDER BY created_at DESC LIMIT 1`,
		uniqueID)
}

// GetByTrackingID retrieves the most recent call record with the given
// tracking id.
func (r *Repository) GetByTrackingID(ctx context.Context, trackingID string) (CallRecord, error) {
	if trackingID == "" {
		return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
	}
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE tracking_id = $1 ORDER BY created_at DESC LIMIT 1`,
		trackingID)
}

// GetByChannel retrieves the most recent call record bound to the given
// channel name. The PBX reuses channel names across calls, so newest-first
// ordering is what keeps stale records from shadowing a live call.
func (r *Repository) GetByChannel(ctx context.Context, channelName string) (CallRecord, error) {
	if channelName == "" {
		return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
	}
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE channel_name = $1 ORDER BY created_at DESC LIMIT 1`,
		channelName)
}

// LatestByTarget retrieves the most recent non-terminal call record dialing
// the given number.
func (r *Repository) LatestByTarget(ctx context.Context, targetNumber string) (CallRecord, error) {
	if targetNumber == "" {
		return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
	}
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE target_number = $1
		   AND status NOT IN ('completed', 'error', 'failed', 'cancelled')
		 ORDER BY created_at DESC LIMIT 1`,
		targetNumber)
}

// LatestPending retrieves the most recently originated call record the PBX
// has not yet identified: no unique id, no channel, still in the dispatch
// phase. This is the last resort of the correlation chain.
func (r *Repository) LatestPending(ctx context.Context) (CallRecord, error) {
	return r.queryOne(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE unique_id = '' AND channel_name = ''
		   AND status IN ('initiating', 'sending')
		 ORDER BY created_at DESC LIMIT 1`)
}

// WithRecordTx runs fn against the record row locked for update and writes
// the mutated record back in the same transaction. This is the single
// mutation path for event processing: concurrent handlers for the same call
// serialize on the row lock, handlers for different calls do not block each
// other.
func (r *Repository) WithRecordTx(ctx context.Context, callID string, fn func(rec *CallRecord) error) (CallRecord, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := scanRecord(tx.QueryRow(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records WHERE call_id = $1 FOR UPDATE`,
		callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CallRecord{}, apperr.NotFound(recordNotFoundMsg)
		}
		return CallRecord{}, fmt.Errorf("failed to lock call record: %w", err)
	}

	if err := fn(&rec); err != nil {
		return CallRecord{}, err
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	rec.UpdatedAt = time.Now()

	_, err = tx.Exec(ctx, `
		UPDATE dial_call_records SET
			tracking_id = $2,
			unique_id = $3,
			channel_name = $4,
			action_id = $5,
			status = $6,
			dtmf_digits = $7,
			metadata = $8,
			start_time = $9,
			end_time = $10,
			updated_at = $11
		WHERE call_id = $1`,
		rec.CallID, rec.TrackingID, rec.UniqueID, rec.ChannelName, rec.ActionID,
		rec.Status, rec.DTMFDigits, metadataJSON, rec.StartTime, rec.EndTime,
		rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("failed to update call record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CallRecord{}, fmt.Errorf("failed to commit call record update: %w", err)
	}
	return rec, nil
}

// ListQueuedByCampaign returns the queued records of a campaign in dial
// order.
func (r *Repository) ListQueuedByCampaign(ctx context.Context, campaignID uuid.UUID) ([]CallRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE campaign_id = $1 AND status = 'queued'
		 ORDER BY sequence_number`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued call records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListByCampaign returns all records of a campaign in dial order.
func (r *Repository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]CallRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE campaign_id = $1
		 ORDER BY sequence_number`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListResponsesByCampaign returns the records of a campaign where the
// callee pressed at least one key, in dial order.
func (r *Repository) ListResponsesByCampaign(ctx context.Context, campaignID uuid.UUID) ([]CallRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE campaign_id = $1 AND dtmf_digits <> ''
		 ORDER BY sequence_number`,
		campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dtmf responses: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CancelQueuedByCampaign marks every still-queued record of a campaign as
// cancelled. Used when the operator stops a campaign; in-flight records are
// left alone so their terminal events can still complete them.
func (r *Repository) CancelQueuedByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE dial_call_records
		SET status = 'cancelled', updated_at = now()
		WHERE campaign_id = $1 AND status = 'queued'`,
		campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel queued call records: %w", err)
	}
	return result.RowsAffected(), nil
}

// CampaignTallies aggregates the persisted outcome counts for a campaign.
type CampaignTallies struct {
	Total     int
	Completed int
	Failed    int
	Active    int
	Responses int
}

// TalliesByCampaign recomputes campaign counters from the call records.
// Used to rebuild in-memory campaign state after a restart and to settle
// final reports.
func (r *Repository) TalliesByCampaign(ctx context.Context, campaignID uuid.UUID) (CampaignTallies, error) {
	var t CampaignTallies
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status IN ('error', 'failed', 'cancelled')),
			count(*) FILTER (WHERE status NOT IN ('queued', 'completed', 'error', 'failed', 'cancelled')),
			count(*) FILTER (WHERE dtmf_digits <> '')
		FROM dial_call_records
		WHERE campaign_id = $1`,
		campaignID).Scan(&t.Total, &t.Completed, &t.Failed, &t.Active, &t.Responses)
	if err != nil {
		return CampaignTallies{}, fmt.Errorf("failed to tally call records: %w", err)
	}
	return t, nil
}

// ListStaleNonTerminal returns records stuck in a non-terminal status for
// longer than the given age. The PBX should always emit a terminal event;
// records this finds are operational anomalies to reconcile manually.
func (r *Repository) ListStaleNonTerminal(ctx context.Context, olderThan time.Duration) ([]CallRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+recordSelectCols+` FROM dial_call_records
		 WHERE status NOT IN ('queued', 'completed', 'error', 'failed', 'cancelled')
		   AND updated_at < $1
		 ORDER BY updated_at`,
		time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale call records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]CallRecord, error) {
	var records []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call records: %w", err)
	}
	return records, nil
}
