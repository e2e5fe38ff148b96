package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
)

const holdingColumns = `id, participant_id, property_id, token_amount,
avg_purchase_price, ownership_percent, created_at, updated_at`

// HoldingRepository handles participant token positions.
type HoldingRepository struct {
	log zerolog.Logger
}

// NewHoldingRepository creates a holding repository.
func NewHoldingRepository(log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{log: log.With().Str("repo", "holding").Logger()}
}

// Get returns the holding for a (participant, property) pair, or
// (nil, nil) when the participant holds nothing there.
func (r *HoldingRepository) Get(q Querier, participantID, propertyID string) (*domain.Holding, error) {
	query := "SELECT " + holdingColumns + ` FROM participant_holdings
		WHERE participant_id = ? AND property_id = ?`
	h, err := scanHolding(q.QueryRow(query, participantID, propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// Add merges purchased tokens into a holding. The average purchase
// price is weighted by token amount, so repeated buys at different
// prices keep an accurate cost basis.
func (r *HoldingRepository) Add(q Querier, participantID, propertyID string, tokens, price, totalTokens decimal.Decimal) (*domain.Holding, error) {
	existing, err := r.Get(q, participantID, propertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if existing == nil {
		h := &domain.Holding{
			ID:               uuid.New().String(),
			ParticipantID:    participantID,
			PropertyID:       propertyID,
			TokenAmount:      tokens,
			AvgPurchasePrice: price,
			OwnershipPercent: ownershipPercent(tokens, totalTokens),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		_, err := q.Exec(`
			INSERT INTO participant_holdings
			(id, participant_id, property_id, token_amount, avg_purchase_price,
			 ownership_percent, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.ParticipantID, h.PropertyID,
			h.TokenAmount.String(), h.AvgPurchasePrice.String(),
			h.OwnershipPercent.String(),
			formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create holding: %w", err)
		}
		return h, nil
	}

	// Weighted average: (old_amount*old_price + new_amount*new_price) / total.
	newAmount := existing.TokenAmount.Add(tokens)
	oldCost := existing.TokenAmount.Mul(existing.AvgPurchasePrice)
	newCost := tokens.Mul(price)
	avgPrice := oldCost.Add(newCost).Div(newAmount)

	existing.TokenAmount = newAmount
	existing.AvgPurchasePrice = avgPrice
	existing.OwnershipPercent = ownershipPercent(newAmount, totalTokens)
	existing.UpdatedAt = now

	_, err = q.Exec(`
		UPDATE participant_holdings
		SET token_amount = ?, avg_purchase_price = ?, ownership_percent = ?, updated_at = ?
		WHERE id = ?`,
		existing.TokenAmount.String(), existing.AvgPurchasePrice.String(),
		existing.OwnershipPercent.String(), formatTime(now), existing.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update holding: %w", err)
	}
	return existing, nil
}

// Remove deducts sold tokens from a holding. A holding that reaches
// zero is deleted; empty rows never persist.
func (r *HoldingRepository) Remove(q Querier, participantID, propertyID string, tokens, totalTokens decimal.Decimal) (remaining decimal.Decimal, err error) {
	existing, err := r.Get(q, participantID, propertyID)
	if err != nil {
		return decimal.Zero, err
	}
	if existing == nil {
		return decimal.Zero, ErrNotFound
	}
	if existing.TokenAmount.LessThan(tokens) {
		return decimal.Zero, fmt.Errorf("holding has %s tokens, cannot remove %s",
			existing.TokenAmount, tokens)
	}

	remaining = existing.TokenAmount.Sub(tokens)

	if remaining.IsZero() {
		_, err = q.Exec("DELETE FROM participant_holdings WHERE id = ?", existing.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to delete holding: %w", err)
		}
		return decimal.Zero, nil
	}

	_, err = q.Exec(`
		UPDATE participant_holdings
		SET token_amount = ?, ownership_percent = ?, updated_at = ?
		WHERE id = ?`,
		remaining.String(), ownershipPercent(remaining, totalTokens).String(),
		formatTime(time.Now().UTC()), existing.ID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update holding: %w", err)
	}
	return remaining, nil
}

// ListByParticipant returns all holdings of a participant.
func (r *HoldingRepository) ListByParticipant(q Querier, participantID string) ([]*domain.Holding, error) {
	query := "SELECT " + holdingColumns + ` FROM participant_holdings
		WHERE participant_id = ? ORDER BY property_id ASC`
	return r.list(q, query, participantID)
}

// ListByProperty returns all holdings in a property. Rent collection
// iterates this to distribute the dividend pool pro-rata.
func (r *HoldingRepository) ListByProperty(q Querier, propertyID string) ([]*domain.Holding, error) {
	query := "SELECT " + holdingColumns + ` FROM participant_holdings
		WHERE property_id = ? ORDER BY participant_id ASC`
	return r.list(q, query, propertyID)
}

// SumTokens returns a participant's total token count across all
// properties. Voting power is this sum.
func (r *HoldingRepository) SumTokens(q Querier, participantID string) (decimal.Decimal, error) {
	rows, err := q.Query(
		"SELECT token_amount FROM participant_holdings WHERE participant_id = ?",
		participantID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum holdings: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		d, err := parseDecimal(amount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func (r *HoldingRepository) list(q Querier, query string, args ...interface{}) ([]*domain.Holding, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func scanHolding(s rowScanner) (*domain.Holding, error) {
	var (
		h                      domain.Holding
		amount, price, percent string
		createdAt, updatedAt   string
	)
	err := s.Scan(&h.ID, &h.ParticipantID, &h.PropertyID,
		&amount, &price, &percent, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if h.TokenAmount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if h.AvgPurchasePrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if h.OwnershipPercent, err = parseDecimal(percent); err != nil {
		return nil, err
	}
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

func ownershipPercent(tokens, totalTokens decimal.Decimal) decimal.Decimal {
	if totalTokens.IsZero() {
		return decimal.Zero
	}
	return tokens.Div(totalTokens).Mul(decimal.NewFromInt(100))
}
