package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/domain"
)

const eventColumns = `id, network_month, event_type, severity, title,
description, participant_id, property_id, data, created_at`

// EventRepository handles the append-only network event log.
type EventRepository struct {
	log zerolog.Logger
}

// NewEventRepository creates an event repository.
func NewEventRepository(log zerolog.Logger) *EventRepository {
	return &EventRepository{log: log.With().Str("repo", "event").Logger()}
}

// Create appends a network event.
func (r *EventRepository) Create(q Querier, e *domain.NetworkEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Severity == "" {
		e.Severity = domain.SeverityInfo
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var data interface{}
	if e.Data != nil {
		encoded, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		data = string(encoded)
	}

	_, err := q.Exec(`
		INSERT INTO network_events
		(id, network_month, event_type, severity, title, description,
		 participant_id, property_id, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.NetworkMonth, e.EventType, string(e.Severity),
		e.Title, e.Description, e.ParticipantID, e.PropertyID,
		data, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// EventFilter narrows an event query. Zero values mean no filter.
type EventFilter struct {
	Month     *int
	EventType string
	Limit     int
}

// List returns events matching the filter, newest first.
func (r *EventRepository) List(q Querier, filter EventFilter) ([]*domain.NetworkEvent, error) {
	query := "SELECT " + eventColumns + " FROM network_events WHERE 1=1"
	args := []interface{}{}
	if filter.Month != nil {
		query += " AND network_month = ?"
		args = append(args, *filter.Month)
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*domain.NetworkEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByMonth returns how many events were recorded for a month.
func (r *EventRepository) CountByMonth(q Querier, month int) (int, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM network_events WHERE network_month = ?", month,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func scanEvent(s rowScanner) (*domain.NetworkEvent, error) {
	var (
		e                        domain.NetworkEvent
		severity                 string
		participantID, propertyID sql.NullString
		data                     sql.NullString
		createdAt                string
	)

	err := s.Scan(&e.ID, &e.NetworkMonth, &e.EventType, &severity,
		&e.Title, &e.Description, &participantID, &propertyID,
		&data, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Severity = domain.EventSeverity(severity)
	if participantID.Valid {
		e.ParticipantID = &participantID.String
	}
	if propertyID.Valid {
		e.PropertyID = &propertyID.String
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
