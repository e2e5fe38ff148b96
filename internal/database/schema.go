package database

// networkSchema is the single source of truth for the network database.
// Money and token amounts are stored as TEXT holding decimal strings so
// that no precision is lost between the store and the decimal math in
// the domain layer.
const networkSchema = `
CREATE TABLE IF NOT EXISTS participants (
    id                TEXT PRIMARY KEY,
    external_user_id  TEXT,
    name              TEXT NOT NULL,
    participant_type  TEXT NOT NULL DEFAULT 'human',
    role              TEXT NOT NULL DEFAULT 'investor',
    balance           TEXT NOT NULL DEFAULT '100000',
    total_invested    TEXT NOT NULL DEFAULT '0',
    total_dividends   TEXT NOT NULL DEFAULT '0',
    personality       TEXT,
    goals             TEXT,
    is_active         INTEGER NOT NULL DEFAULT 1,
    last_action_month INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_name
    ON participants(name);
CREATE INDEX IF NOT EXISTS idx_participants_type_role
    ON participants(participant_type, role);

CREATE TABLE IF NOT EXISTS participant_holdings (
    id                 TEXT PRIMARY KEY,
    participant_id     TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    property_id        TEXT NOT NULL,
    token_amount       TEXT NOT NULL,
    avg_purchase_price TEXT NOT NULL DEFAULT '1',
    ownership_percent  TEXT NOT NULL DEFAULT '0',
    created_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(participant_id, property_id)
);

CREATE INDEX IF NOT EXISTS idx_holdings_property
    ON participant_holdings(property_id);

CREATE TABLE IF NOT EXISTS property_states (
    id                   TEXT PRIMARY KEY,
    address              TEXT NOT NULL DEFAULT '',
    suburb               TEXT NOT NULL DEFAULT '',
    property_type        TEXT NOT NULL DEFAULT 'house',
    status               TEXT NOT NULL DEFAULT 'available',
    enabled_at_month     INTEGER NOT NULL DEFAULT 0,
    total_tokens         TEXT NOT NULL DEFAULT '100000',
    tokens_available     TEXT NOT NULL DEFAULT '100000',
    token_price          TEXT NOT NULL DEFAULT '1',
    network_ownership    TEXT NOT NULL DEFAULT '0',
    tenant_id            TEXT,
    weekly_rent          TEXT NOT NULL DEFAULT '0',
    lease_start_month    INTEGER,
    lease_end_month      INTEGER,
    total_rent_collected TEXT NOT NULL DEFAULT '0',
    total_dividends_paid TEXT NOT NULL DEFAULT '0',
    maintenance_reserve  TEXT NOT NULL DEFAULT '0',
    current_valuation    TEXT NOT NULL DEFAULT '0',
    last_valuation_month INTEGER NOT NULL DEFAULT 0,
    created_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_property_states_status
    ON property_states(status);

CREATE TABLE IF NOT EXISTS pending_actions (
    id               TEXT PRIMARY KEY,
    participant_id   TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
    action_type      TEXT NOT NULL,
    action_data      TEXT NOT NULL,
    priority         INTEGER NOT NULL DEFAULT 5,
    status           TEXT NOT NULL DEFAULT 'pending',
    result           TEXT,
    error            TEXT,
    queued_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    processed_at     TIMESTAMP,
    queued_for_month INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_actions_order
    ON pending_actions(status, queued_for_month, priority DESC, queued_at ASC);

CREATE TABLE IF NOT EXISTS network_snapshots (
    id                  TEXT PRIMARY KEY,
    network_month       INTEGER NOT NULL UNIQUE,
    total_properties    INTEGER NOT NULL DEFAULT 0,
    total_participants  INTEGER NOT NULL DEFAULT 0,
    total_valuation     TEXT NOT NULL DEFAULT '0',
    total_tokens_issued TEXT NOT NULL DEFAULT '0',
    avg_token_price     TEXT NOT NULL DEFAULT '1',
    avg_yield           TEXT NOT NULL DEFAULT '4.2',
    actions_processed   INTEGER NOT NULL DEFAULT 0,
    tokens_traded       TEXT NOT NULL DEFAULT '0',
    dividends_paid      TEXT NOT NULL DEFAULT '0',
    rent_collected      TEXT NOT NULL DEFAULT '0',
    full_state          BLOB,
    governor_summary    TEXT,
    processing_time_ms  INTEGER,
    created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS network_events (
    id             TEXT PRIMARY KEY,
    network_month  INTEGER NOT NULL,
    event_type     TEXT NOT NULL,
    severity       TEXT NOT NULL DEFAULT 'info',
    title          TEXT NOT NULL,
    description    TEXT NOT NULL,
    participant_id TEXT,
    property_id    TEXT,
    data           TEXT,
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_network_events_month
    ON network_events(network_month);
CREATE INDEX IF NOT EXISTS idx_network_events_type
    ON network_events(event_type, created_at DESC);
`
