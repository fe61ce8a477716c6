package sqlite

const schema = `
-- Flow catalog: immutable ordered stage templates
CREATE TABLE IF NOT EXISTS flows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    stage_order TEXT NOT NULL,  -- JSON array of stage ids
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL CHECK(length(name) <= 255),
    notifies_on_entry INTEGER NOT NULL DEFAULT 0,
    posts_listing INTEGER NOT NULL DEFAULT 0,
    default_message TEXT NOT NULL DEFAULT ''
);

-- Tracked records (contracts)
CREATE TABLE IF NOT EXISTS records (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL CHECK(length(description) <= 500),
    current_stage_id INTEGER,
    flow_id INTEGER REFERENCES flows(id),
    assigned_to TEXT NOT NULL DEFAULT '',
    is_visible INTEGER NOT NULL DEFAULT 1,
    is_archived INTEGER NOT NULL DEFAULT 0,
    parent_id TEXT REFERENCES records(id) ON DELETE SET NULL,
    has_metrics INTEGER NOT NULL DEFAULT 0,
    spec_number TEXT NOT NULL DEFAULT '',
    expiration_date DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent_id);
CREATE INDEX IF NOT EXISTS idx_records_flow ON records(flow_id);
CREATE INDEX IF NOT EXISTS idx_records_visible ON records(is_visible, is_archived);

-- Per-(record, stage, flow) progress rows. Rows for flows a record no longer
-- uses persist with NULL timestamps.
CREATE TABLE IF NOT EXISTS stage_instances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
    stage_id INTEGER NOT NULL REFERENCES stages(id),
    flow_id INTEGER NOT NULL REFERENCES flows(id),
    entered DATETIME,
    exited DATETIME,
    notes TEXT NOT NULL DEFAULT '',
    UNIQUE (record_id, stage_id, flow_id),
    -- exited implies entered
    CHECK (exited IS NULL OR entered IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_stage_instances_record ON stage_instances(record_id);
CREATE INDEX IF NOT EXISTS idx_stage_instances_record_flow ON stage_instances(record_id, flow_id);

-- Append-only action log. The AUTOINCREMENT id is the insertion-sequence
-- tiebreaker for items sharing a taken_at.
CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage_instance_id INTEGER NOT NULL REFERENCES stage_instances(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    actor TEXT NOT NULL DEFAULT '',
    taken_at DATETIME NOT NULL,
    detail TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_actions_instance ON actions(stage_instance_id);
CREATE INDEX IF NOT EXISTS idx_actions_taken_at ON actions(taken_at);
`
