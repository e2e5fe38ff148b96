// Package store implements the persistent state store for the network.
// It is the sole owner of all persisted entities: participants,
// holdings, property states, pending actions, snapshots, and events.
// Other components receive read snapshots or operate inside a scoped
// transaction handed out by WithTx.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/database"
)

// Sentinel errors surfaced to callers. The action processor maps these
// to stable error codes; the API layer maps them to status classes.
var (
	// ErrNotFound indicates a missing participant, property, or action.
	ErrNotFound = errors.New("not found")
	// ErrSnapshotExists indicates a snapshot already exists for a month.
	ErrSnapshotExists = errors.New("snapshot already exists for month")
	// ErrDuplicateAction indicates an action id was queued twice.
	ErrDuplicateAction = errors.New("action already queued")
)

// timeLayout is a fixed-width timestamp format. Fixed width keeps the
// lexicographic order of stored strings identical to chronological
// order, which the pending-action ordering index relies on.
const timeLayout = "2006-01-02 15:04:05.000000000"

// Querier is satisfied by both *sql.DB and *sql.Tx so repository
// methods can run standalone or inside a scoped transaction.
type Querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Store bundles the repositories over the network database.
type Store struct {
	db *database.DB

	Participants *ParticipantRepository
	Holdings     *HoldingRepository
	Properties   *PropertyRepository
	Actions      *ActionRepository
	Snapshots    *SnapshotRepository
	Events       *EventRepository

	log zerolog.Logger
}

// New creates a store over an initialized network database.
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{
		db:           db,
		Participants: NewParticipantRepository(log),
		Holdings:     NewHoldingRepository(log),
		Properties:   NewPropertyRepository(log),
		Actions:      NewActionRepository(log),
		Snapshots:    NewSnapshotRepository(log),
		Events:       NewEventRepository(log),
		log:          log.With().Str("component", "store").Logger(),
	}
}

// DB returns the read connection for non-transactional reads.
func (s *Store) DB() *sql.DB {
	return s.db.Conn()
}

// WithTx executes fn inside a scoped transaction. The transaction is
// rolled back on error or panic and committed otherwise; release is
// guaranteed on every exit path.
func (s *Store) WithTx(fn func(tx *sql.Tx) error) error {
	return database.WithTransaction(s.db.Conn(), fn)
}

// formatTime renders a timestamp in the store's fixed-width layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp, tolerating the bare sqlite
// CURRENT_TIMESTAMP format for rows created outside Go.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// parseDecimal converts a stored TEXT column into a decimal.
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}
