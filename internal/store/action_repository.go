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

const actionColumns = `id, participant_id, action_type, action_data, priority,
status, result, error, queued_at, processed_at, queued_for_month`

// ActionRepository handles the pending-action queue.
type ActionRepository struct {
	log zerolog.Logger
}

// NewActionRepository creates an action repository.
func NewActionRepository(log zerolog.Logger) *ActionRepository {
	return &ActionRepository{log: log.With().Str("repo", "action").Logger()}
}

// Queue inserts a pending action. Queuing the same action id twice
// returns ErrDuplicateAction; the first submission wins.
func (r *ActionRepository) Queue(q Querier, a *domain.PendingAction) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Priority == 0 {
		a.Priority = 5
	}
	if a.Status == "" {
		a.Status = domain.ActionPending
	}
	if a.QueuedAt.IsZero() {
		a.QueuedAt = time.Now().UTC()
	}

	_, err := q.Exec(`
		INSERT INTO pending_actions
		(id, participant_id, action_type, action_data, priority, status,
		 queued_at, queued_for_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParticipantID, a.ActionType, string(a.Data), a.Priority,
		string(a.Status), formatTime(a.QueuedAt), a.QueuedForMonth,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
			return ErrDuplicateAction
		}
		return fmt.Errorf("failed to queue action: %w", err)
	}

	r.log.Debug().
		Str("action_id", a.ID).
		Str("action_type", a.ActionType).
		Int("queued_for_month", a.QueuedForMonth).
		Msg("Action queued")
	return nil
}

// GetByID retrieves an action by id. Returns ErrNotFound when absent.
func (r *ActionRepository) GetByID(q Querier, id string) (*domain.PendingAction, error) {
	query := "SELECT " + actionColumns + " FROM pending_actions WHERE id = ?"
	a, err := scanAction(q.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return a, nil
}

// ListPending returns the pending actions queued at or before the given
// month, in processing order: priority descending, then submission
// time ascending. Ties on both never reorder because queued_at is
// stored at nanosecond width.
func (r *ActionRepository) ListPending(q Querier, month int) ([]*domain.PendingAction, error) {
	query := "SELECT " + actionColumns + ` FROM pending_actions
		WHERE status = ? AND queued_for_month <= ?
		ORDER BY priority DESC, queued_at ASC`

	rows, err := q.Query(query, string(domain.ActionPending), month)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	var actions []*domain.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CountPending returns the number of actions waiting for the given
// month. The clock embeds this in sync and warning events.
func (r *ActionRepository) CountPending(q Querier, month int) (int, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM pending_actions WHERE status = ? AND queued_for_month <= ?",
		string(domain.ActionPending), month,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}

// Complete marks an action terminal. A result payload makes it
// completed; an error string makes it failed. Terminal actions are
// immutable afterwards.
func (r *ActionRepository) Complete(q Querier, id string, result []byte, actionErr *string) error {
	status := domain.ActionCompleted
	if actionErr != nil {
		status = domain.ActionFailed
	}

	var resultArg interface{}
	if len(result) > 0 {
		resultArg = string(result)
	}

	res, err := q.Exec(`
		UPDATE pending_actions
		SET status = ?, result = ?, error = ?, processed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(status), resultArg, actionErr, formatTime(time.Now().UTC()),
		id, string(domain.ActionPending), string(domain.ActionProcessing),
	)
	if err != nil {
		return fmt.Errorf("failed to complete action: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByParticipant returns a participant's actions, newest first.
func (r *ActionRepository) ListByParticipant(q Querier, participantID string, limit int) ([]*domain.PendingAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + actionColumns + ` FROM pending_actions
		WHERE participant_id = ? ORDER BY queued_at DESC LIMIT ?`

	rows, err := q.Query(query, participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list participant actions: %w", err)
	}
	defer rows.Close()

	var actions []*domain.PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func scanAction(s rowScanner) (*domain.PendingAction, error) {
	var (
		a            domain.PendingAction
		status, data string
		result       sql.NullString
		actionErr    sql.NullString
		queuedAt     string
		processedAt  sql.NullString
	)

	err := s.Scan(&a.ID, &a.ParticipantID, &a.ActionType, &data, &a.Priority,
		&status, &result, &actionErr, &queuedAt, &processedAt, &a.QueuedForMonth)
	if err != nil {
		return nil, err
	}

	a.Status = domain.ActionStatus(status)
	a.Data = []byte(data)
	if result.Valid {
		a.Result = []byte(result.String)
	}
	if actionErr.Valid {
		a.Error = &actionErr.String
	}
	if a.QueuedAt, err = parseTime(queuedAt); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t, err := parseTime(processedAt.String)
		if err != nil {
			return nil, err
		}
		a.ProcessedAt = &t
	}
	return &a, nil
}
