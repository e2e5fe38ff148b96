package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/domain"
)

const snapshotColumns = `id, network_month, total_properties, total_participants,
total_valuation, total_tokens_issued, avg_token_price, avg_yield,
actions_processed, tokens_traded, dividends_paid, rent_collected,
full_state, governor_summary, processing_time_ms, created_at`

// SnapshotRepository handles immutable per-month network snapshots.
type SnapshotRepository struct {
	log zerolog.Logger
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{log: log.With().Str("repo", "snapshot").Logger()}
}

// Create inserts a snapshot for a month. Snapshots are append-only and
// unique per month; a second insert for the same month returns
// ErrSnapshotExists.
func (r *SnapshotRepository) Create(q Querier, s *domain.NetworkSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := q.Exec(`
		INSERT INTO network_snapshots
		(id, network_month, total_properties, total_participants,
		 total_valuation, total_tokens_issued, avg_token_price, avg_yield,
		 actions_processed, tokens_traded, dividends_paid, rent_collected,
		 full_state, governor_summary, processing_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.NetworkMonth, s.TotalProperties, s.TotalParticipants,
		s.TotalValuation.String(), s.TotalTokensIssued.String(),
		s.AvgTokenPrice.String(), s.AvgYield.String(),
		s.ActionsProcessed, s.TokensTraded.String(),
		s.DividendsPaid.String(), s.RentCollected.String(),
		s.FullState, s.GovernorSummary, s.ProcessingTimeMs,
		formatTime(s.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
			return ErrSnapshotExists
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	r.log.Info().
		Int("network_month", s.NetworkMonth).
		Int("actions_processed", s.ActionsProcessed).
		Msg("Snapshot created")
	return nil
}

// GetByMonth retrieves the snapshot for a specific month. Returns
// ErrNotFound when that month has not been processed yet.
func (r *SnapshotRepository) GetByMonth(q Querier, month int) (*domain.NetworkSnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM network_snapshots WHERE network_month = ?"
	s, err := scanSnapshot(q.QueryRow(query, month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// GetLatest retrieves the most recent snapshot, or (nil, nil) when no
// month has completed yet.
func (r *SnapshotRepository) GetLatest(q Querier) (*domain.NetworkSnapshot, error) {
	query := "SELECT " + snapshotColumns + ` FROM network_snapshots
		ORDER BY network_month DESC LIMIT 1`
	s, err := scanSnapshot(q.QueryRow(query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return s, nil
}

// List returns the most recent snapshots in month order, oldest first,
// bounded by limit. Metrics consumers feed this series into their
// indicator math.
func (r *SnapshotRepository) List(q Querier, limit int) ([]*domain.NetworkSnapshot, error) {
	if limit <= 0 {
		limit = 60
	}
	query := "SELECT " + snapshotColumns + ` FROM network_snapshots
		ORDER BY network_month DESC LIMIT ?`

	rows, err := q.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.NetworkSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

func scanSnapshot(s rowScanner) (*domain.NetworkSnapshot, error) {
	var (
		snap                              domain.NetworkSnapshot
		valuation, issued, price, yield   string
		traded, dividends, rent           string
		fullState                         []byte
		summary                           sql.NullString
		processingTime                    sql.NullInt64
		createdAt                         string
	)

	err := s.Scan(&snap.ID, &snap.NetworkMonth, &snap.TotalProperties,
		&snap.TotalParticipants, &valuation, &issued, &price, &yield,
		&snap.ActionsProcessed, &traded, &dividends, &rent,
		&fullState, &summary, &processingTime, &createdAt)
	if err != nil {
		return nil, err
	}

	snap.FullState = fullState
	if summary.Valid {
		snap.GovernorSummary = summary.String
	}
	if processingTime.Valid {
		snap.ProcessingTimeMs = processingTime.Int64
	}

	if snap.TotalValuation, err = parseDecimal(valuation); err != nil {
		return nil, err
	}
	if snap.TotalTokensIssued, err = parseDecimal(issued); err != nil {
		return nil, err
	}
	if snap.AvgTokenPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if snap.AvgYield, err = parseDecimal(yield); err != nil {
		return nil, err
	}
	if snap.TokensTraded, err = parseDecimal(traded); err != nil {
		return nil, err
	}
	if snap.DividendsPaid, err = parseDecimal(dividends); err != nil {
		return nil, err
	}
	if snap.RentCollected, err = parseDecimal(rent); err != nil {
		return nil, err
	}
	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &snap, nil
}
