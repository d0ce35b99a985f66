package query

import (
	"context"
	"database/sql"
	"fmt"
)

// Service provides read-only access to the projection tables. Responses
// carry the producing transition's sequence so callers can reason about
// freshness against the engine's live sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetPolicy returns the projected record for an owner, nil if none exists
func (s *Service) GetPolicy(ctx context.Context, owner string) (*PolicyResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner_addr, protocol_name, protocol_website, contact_information,
		       asset_addr, amount, yearly_price, deadline, status, last_sequence
		FROM projections.policies
		WHERE owner_addr = $1`, owner)

	var resp PolicyResponse
	var deadline sql.NullTime
	err := row.Scan(
		&resp.Owner, &resp.ProtocolName, &resp.ProtocolWebsite, &resp.ContactInformation,
		&resp.Asset, &resp.Amount, &resp.YearlyPrice, &deadline, &resp.Status, &resp.AsOfSequence,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query policy: %w", err)
	}
	if deadline.Valid {
		resp.Deadline = &deadline.Time
	}
	return &resp, nil
}

// ListPolicies returns projected records filtered by status ("" for all)
func (s *Service) ListPolicies(ctx context.Context, status string, limit int) ([]PolicyResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_addr, protocol_name, protocol_website, contact_information,
		       asset_addr, amount, yearly_price, deadline, status, last_sequence
		FROM projections.policies
		WHERE ($1 = '' OR status = $1)
		ORDER BY last_sequence DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyResponse
	for rows.Next() {
		var resp PolicyResponse
		var deadline sql.NullTime
		if err := rows.Scan(
			&resp.Owner, &resp.ProtocolName, &resp.ProtocolWebsite, &resp.ContactInformation,
			&resp.Asset, &resp.Amount, &resp.YearlyPrice, &deadline, &resp.Status, &resp.AsOfSequence,
		); err != nil {
			return nil, err
		}
		if deadline.Valid {
			resp.Deadline = &deadline.Time
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// GetPool returns the projected liquidity counters for an asset
func (s *Service) GetPool(ctx context.Context, asset string) (*PoolResponse, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset_addr, available, reserved, collected_fees, last_sequence
		FROM projections.pool_liquidity
		WHERE asset_addr = $1`, asset)

	var resp PoolResponse
	err := row.Scan(&resp.Asset, &resp.Available, &resp.Reserved, &resp.CollectedFees, &resp.AsOfSequence)
	if err == sql.ErrNoRows {
		return &PoolResponse{Asset: asset}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pool: %w", err)
	}
	return &resp, nil
}

// GetEvents returns logged transitions starting from a sequence
func (s *Service) GetEvents(ctx context.Context, fromSequence int64, limit int) ([]EventResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, owner_addr, asset_addr, payload, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2`, fromSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventResponse
	for rows.Next() {
		var resp EventResponse
		if err := rows.Scan(&resp.Sequence, &resp.EventType, &resp.Owner, &resp.Asset, &resp.Payload, &resp.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// GetOwnerEvents returns an owner's transition history, newest first
func (s *Service) GetOwnerEvents(ctx context.Context, owner string, limit int) ([]EventResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, owner_addr, asset_addr, payload, timestamp
		FROM event_log.events
		WHERE owner_addr = $1
		ORDER BY sequence DESC
		LIMIT $2`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query owner events: %w", err)
	}
	defer rows.Close()

	var out []EventResponse
	for rows.Next() {
		var resp EventResponse
		if err := rows.Scan(&resp.Sequence, &resp.EventType, &resp.Owner, &resp.Asset, &resp.Payload, &resp.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}
