package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
)

// BalanceOp selects how AdjustBalance combines the delta with the
// current balance.
type BalanceOp string

const (
	BalanceAdd BalanceOp = "add"
	BalanceSub BalanceOp = "sub"
	BalanceSet BalanceOp = "set"
)

// participantColumns lists the columns of the participants table.
// Column order must match scanParticipant.
const participantColumns = `id, external_user_id, name, participant_type, role, balance,
total_invested, total_dividends, personality, goals, is_active, last_action_month,
created_at, updated_at`

// ParticipantRepository handles participant persistence.
type ParticipantRepository struct {
	log zerolog.Logger
}

// NewParticipantRepository creates a participant repository.
func NewParticipantRepository(log zerolog.Logger) *ParticipantRepository {
	return &ParticipantRepository{log: log.With().Str("repo", "participant").Logger()}
}

// Create inserts a new participant. ID and timestamps are populated when
// missing.
func (r *ParticipantRepository) Create(q Querier, p *domain.Participant) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	personality, err := marshalNullable(p.Personality)
	if err != nil {
		return fmt.Errorf("failed to encode personality: %w", err)
	}
	goals, err := marshalNullable(p.Goals)
	if err != nil {
		return fmt.Errorf("failed to encode goals: %w", err)
	}

	query := `
		INSERT INTO participants
		(id, external_user_id, name, participant_type, role, balance,
		 total_invested, total_dividends, personality, goals, is_active,
		 last_action_month, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = q.Exec(query,
		p.ID,
		p.ExternalUserID,
		p.Name,
		string(p.Kind),
		string(p.Role),
		p.Balance.String(),
		p.TotalInvested.String(),
		p.TotalDividends.String(),
		personality,
		goals,
		boolToInt(p.IsActive),
		p.LastActionMonth,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	r.log.Info().
		Str("participant_id", p.ID).
		Str("name", p.Name).
		Str("kind", string(p.Kind)).
		Msg("Participant created")

	return nil
}

// GetByID retrieves a participant by id. Returns ErrNotFound when the
// participant does not exist.
func (r *ParticipantRepository) GetByID(q Querier, id string) (*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE id = ?"
	p, err := scanParticipant(q.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// GetByName retrieves a participant by display name. Returns (nil, nil)
// when absent; NPC initialization uses this for idempotency.
func (r *ParticipantRepository) GetByName(q Querier, name string) (*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE name = ?"
	p, err := scanParticipant(q.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by name: %w", err)
	}
	return p, nil
}

// GetByExternalUser retrieves the participant linked to an external
// user account. Exactly one human participant exists per linked user.
func (r *ParticipantRepository) GetByExternalUser(q Querier, externalUserID string) (*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE external_user_id = ?"
	p, err := scanParticipant(q.QueryRow(query, externalUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by external user: %w", err)
	}
	return p, nil
}

// List returns participants, optionally filtered by kind and role.
// Ordering is stable (by name) so agent iteration is deterministic.
func (r *ParticipantRepository) List(q Querier, kind domain.ParticipantKind, role domain.Role) ([]*domain.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE 1=1"
	args := []interface{}{}
	if kind != "" {
		query += " AND participant_type = ?"
		args = append(args, string(kind))
	}
	if role != "" {
		query += " AND role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY name ASC"

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p, err := scanParticipantRows(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Count returns the number of active participants.
func (r *ParticipantRepository) Count(q Querier) (int, error) {
	var count int
	err := q.QueryRow("SELECT COUNT(*) FROM participants WHERE is_active = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// AdjustBalance applies a delta (or absolute value) to a participant's
// balance. A subtraction that would take the balance below zero returns
// an error without writing; balances never go negative.
func (r *ParticipantRepository) AdjustBalance(q Querier, id string, delta decimal.Decimal, op BalanceOp) (decimal.Decimal, error) {
	p, err := r.GetByID(q, id)
	if err != nil {
		return decimal.Zero, err
	}

	var next decimal.Decimal
	switch op {
	case BalanceAdd:
		next = p.Balance.Add(delta)
	case BalanceSub:
		next = p.Balance.Sub(delta)
	case BalanceSet:
		next = delta
	default:
		return decimal.Zero, fmt.Errorf("unknown balance op %q", op)
	}

	if next.IsNegative() {
		return decimal.Zero, fmt.Errorf("balance would go negative for participant %s", id)
	}

	_, err = q.Exec(
		"UPDATE participants SET balance = ?, updated_at = ? WHERE id = ?",
		next.String(), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return next, nil
}

// AddInvested accumulates the total-invested counter.
func (r *ParticipantRepository) AddInvested(q Querier, id string, amount decimal.Decimal) error {
	p, err := r.GetByID(q, id)
	if err != nil {
		return err
	}
	_, err = q.Exec(
		"UPDATE participants SET total_invested = ?, updated_at = ? WHERE id = ?",
		p.TotalInvested.Add(amount).String(), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update total invested: %w", err)
	}
	return nil
}

// AddDividends accumulates the total-dividends counter.
func (r *ParticipantRepository) AddDividends(q Querier, id string, amount decimal.Decimal) error {
	p, err := r.GetByID(q, id)
	if err != nil {
		return err
	}
	_, err = q.Exec(
		"UPDATE participants SET total_dividends = ?, updated_at = ? WHERE id = ?",
		p.TotalDividends.Add(amount).String(), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update total dividends: %w", err)
	}
	return nil
}

// SaveGoals persists a participant's goal list. Goal completion is
// monotonic; callers only ever flip Completed to true.
func (r *ParticipantRepository) SaveGoals(q Querier, id string, goals []domain.Goal) error {
	encoded, err := marshalNullable(goals)
	if err != nil {
		return fmt.Errorf("failed to encode goals: %w", err)
	}
	_, err = q.Exec(
		"UPDATE participants SET goals = ?, updated_at = ? WHERE id = ?",
		encoded, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	return nil
}

// SetLastActionMonth records the month an NPC last acted in.
func (r *ParticipantRepository) SetLastActionMonth(q Querier, id string, month int) error {
	_, err := q.Exec(
		"UPDATE participants SET last_action_month = ?, updated_at = ? WHERE id = ?",
		month, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set last action month: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row *sql.Row) (*domain.Participant, error) {
	return scanParticipantFrom(row)
}

func scanParticipantRows(rows *sql.Rows) (*domain.Participant, error) {
	return scanParticipantFrom(rows)
}

func scanParticipantFrom(s rowScanner) (*domain.Participant, error) {
	var (
		p                                  domain.Participant
		externalUserID                     sql.NullString
		kind, role                         string
		balance, invested, dividends       string
		personality, goals                 sql.NullString
		isActive                           int
		createdAt, updatedAt               string
	)

	err := s.Scan(
		&p.ID, &externalUserID, &p.Name, &kind, &role, &balance,
		&invested, &dividends, &personality, &goals, &isActive,
		&p.LastActionMonth, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if externalUserID.Valid {
		p.ExternalUserID = &externalUserID.String
	}
	p.Kind = domain.ParticipantKind(kind)
	p.Role = domain.Role(role)
	p.IsActive = isActive != 0

	if p.Balance, err = parseDecimal(balance); err != nil {
		return nil, err
	}
	if p.TotalInvested, err = parseDecimal(invested); err != nil {
		return nil, err
	}
	if p.TotalDividends, err = parseDecimal(dividends); err != nil {
		return nil, err
	}

	if personality.Valid && personality.String != "" {
		var pers domain.Personality
		if err := json.Unmarshal([]byte(personality.String), &pers); err != nil {
			return nil, fmt.Errorf("failed to decode personality: %w", err)
		}
		p.Personality = &pers
	}
	if goals.Valid && goals.String != "" {
		if err := json.Unmarshal([]byte(goals.String), &p.Goals); err != nil {
			return nil, fmt.Errorf("failed to decode goals: %w", err)
		}
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &p, nil
}

// marshalNullable encodes v as JSON, returning nil for nil values so
// the column stays NULL.
func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *domain.Personality:
		if val == nil {
			return nil, nil
		}
	case []domain.Goal:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
