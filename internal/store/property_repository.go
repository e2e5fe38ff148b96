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

const propertyColumns = `id, address, suburb, property_type, status, enabled_at_month,
total_tokens, tokens_available, token_price, network_ownership, tenant_id,
weekly_rent, lease_start_month, lease_end_month, total_rent_collected,
total_dividends_paid, maintenance_reserve, current_valuation,
last_valuation_month, created_at, updated_at`

// PropertyRepository handles tokenized property state.
type PropertyRepository struct {
	log zerolog.Logger
}

// NewPropertyRepository creates a property repository.
func NewPropertyRepository(log zerolog.Logger) *PropertyRepository {
	return &PropertyRepository{log: log.With().Str("repo", "property").Logger()}
}

// Create inserts a new property state. Ownership is derived from the
// token counters before writing.
func (r *PropertyRepository) Create(q Querier, p *domain.PropertyState) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.RecomputeOwnership()

	_, err := q.Exec(`
		INSERT INTO property_states
		(id, address, suburb, property_type, status, enabled_at_month,
		 total_tokens, tokens_available, token_price, network_ownership,
		 tenant_id, weekly_rent, lease_start_month, lease_end_month,
		 total_rent_collected, total_dividends_paid, maintenance_reserve,
		 current_valuation, last_valuation_month, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Address, p.Suburb, p.PropertyType, string(p.Status), p.EnabledAtMonth,
		p.TotalTokens.String(), p.TokensAvailable.String(), p.TokenPrice.String(),
		p.NetworkOwnership.String(), p.TenantID, p.WeeklyRent.String(),
		p.LeaseStartMonth, p.LeaseEndMonth, p.TotalRentCollected.String(),
		p.TotalDividendsPaid.String(), p.MaintenanceReserve.String(),
		p.CurrentValuation.String(), p.LastValuationMonth,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}

	r.log.Info().
		Str("property_id", p.ID).
		Str("address", p.Address).
		Str("status", string(p.Status)).
		Msg("Property created")
	return nil
}

// GetByID retrieves a property by id. Returns ErrNotFound when absent.
func (r *PropertyRepository) GetByID(q Querier, id string) (*domain.PropertyState, error) {
	query := "SELECT " + propertyColumns + " FROM property_states WHERE id = ?"
	p, err := scanProperty(q.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// List returns properties, optionally filtered by status, ordered by
// address for deterministic iteration.
func (r *PropertyRepository) List(q Querier, status domain.PropertyStatus) ([]*domain.PropertyState, error) {
	query := "SELECT " + propertyColumns + " FROM property_states"
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY address ASC"

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	var properties []*domain.PropertyState
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// Save persists the mutable simulation fields of a property. Ownership
// is recomputed from the token counters so the stored value can never
// drift from the invariant.
func (r *PropertyRepository) Save(q Querier, p *domain.PropertyState) error {
	p.RecomputeOwnership()
	p.UpdatedAt = time.Now().UTC()

	res, err := q.Exec(`
		UPDATE property_states SET
			address = ?, suburb = ?, property_type = ?, status = ?,
			enabled_at_month = ?, total_tokens = ?, tokens_available = ?,
			token_price = ?, network_ownership = ?, tenant_id = ?,
			weekly_rent = ?, lease_start_month = ?, lease_end_month = ?,
			total_rent_collected = ?, total_dividends_paid = ?,
			maintenance_reserve = ?, current_valuation = ?,
			last_valuation_month = ?, updated_at = ?
		WHERE id = ?`,
		p.Address, p.Suburb, p.PropertyType, string(p.Status),
		p.EnabledAtMonth, p.TotalTokens.String(), p.TokensAvailable.String(),
		p.TokenPrice.String(), p.NetworkOwnership.String(), p.TenantID,
		p.WeeklyRent.String(), p.LeaseStartMonth, p.LeaseEndMonth,
		p.TotalRentCollected.String(), p.TotalDividendsPaid.String(),
		p.MaintenanceReserve.String(), p.CurrentValuation.String(),
		p.LastValuationMonth, formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustTokensAvailable moves tokens between the available pool and the
// network. Negative delta sells tokens to participants, positive delta
// returns them. The pool stays within [0, total_tokens].
func (r *PropertyRepository) AdjustTokensAvailable(q Querier, id string, delta decimal.Decimal) (*domain.PropertyState, error) {
	p, err := r.GetByID(q, id)
	if err != nil {
		return nil, err
	}

	next := p.TokensAvailable.Add(delta)
	if next.IsNegative() {
		return nil, fmt.Errorf("property %s has %s tokens available, cannot adjust by %s",
			id, p.TokensAvailable, delta)
	}
	if next.GreaterThan(p.TotalTokens) {
		return nil, fmt.Errorf("property %s token pool would exceed total supply", id)
	}

	p.TokensAvailable = next
	if err := r.Save(q, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetTenant places a tenant on a property. The property becomes
// tenanted and carries the lease window alongside the agreed rent.
func (r *PropertyRepository) SetTenant(q Querier, id, tenantID string, weeklyRent decimal.Decimal, leaseStartMonth, leaseEndMonth int) (*domain.PropertyState, error) {
	p, err := r.GetByID(q, id)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PropertyTenanted
	p.TenantID = &tenantID
	p.WeeklyRent = weeklyRent
	p.LeaseStartMonth = &leaseStartMonth
	p.LeaseEndMonth = &leaseEndMonth

	if err := r.Save(q, p); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("property_id", id).
		Str("tenant_id", tenantID).
		Str("weekly_rent", weeklyRent.String()).
		Msg("Property tenant set")
	return p, nil
}

// ClearTenant removes the tenant and lease from a property, returning
// it to the available pool.
func (r *PropertyRepository) ClearTenant(q Querier, id string) (*domain.PropertyState, error) {
	p, err := r.GetByID(q, id)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PropertyAvailable
	p.TenantID = nil
	p.LeaseStartMonth = nil
	p.LeaseEndMonth = nil

	if err := r.Save(q, p); err != nil {
		return nil, err
	}

	r.log.Info().Str("property_id", id).Msg("Property tenant cleared")
	return p, nil
}

func scanProperty(s rowScanner) (*domain.PropertyState, error) {
	var (
		p                                domain.PropertyState
		status                           string
		totalTokens, available, price    string
		ownership, rent                  string
		rentCollected, dividendsPaid     string
		reserve, valuation               string
		tenantID                         sql.NullString
		leaseStart, leaseEnd             sql.NullInt64
		createdAt, updatedAt             string
	)

	err := s.Scan(
		&p.ID, &p.Address, &p.Suburb, &p.PropertyType, &status, &p.EnabledAtMonth,
		&totalTokens, &available, &price, &ownership, &tenantID,
		&rent, &leaseStart, &leaseEnd, &rentCollected,
		&dividendsPaid, &reserve, &valuation,
		&p.LastValuationMonth, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = domain.PropertyStatus(status)
	if tenantID.Valid {
		p.TenantID = &tenantID.String
	}
	if leaseStart.Valid {
		v := int(leaseStart.Int64)
		p.LeaseStartMonth = &v
	}
	if leaseEnd.Valid {
		v := int(leaseEnd.Int64)
		p.LeaseEndMonth = &v
	}

	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.TotalTokens, totalTokens},
		{&p.TokensAvailable, available},
		{&p.TokenPrice, price},
		{&p.NetworkOwnership, ownership},
		{&p.WeeklyRent, rent},
		{&p.TotalRentCollected, rentCollected},
		{&p.TotalDividendsPaid, dividendsPaid},
		{&p.MaintenanceReserve, reserve},
		{&p.CurrentValuation, valuation},
	} {
		if *pair.dst, err = parseDecimal(pair.src); err != nil {
			return nil, err
		}
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
