package repository

// SQLiteSchemaVersion is the current SQLite schema version.
const SQLiteSchemaVersion = 1

// sqliteSchema creates the rule tables.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    body TEXT NOT NULL
);

-- Append-only history; (rule_id, version) is never rewritten.
CREATE TABLE IF NOT EXISTS rule_versions (
    rule_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    body TEXT NOT NULL,
    PRIMARY KEY (rule_id, version)
);

CREATE TABLE IF NOT EXISTS rule_groups (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant_category ON rules(tenant_id, category);
CREATE INDEX IF NOT EXISTS idx_rules_tenant_status ON rules(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_rule_versions_created_at ON rule_versions(rule_id, created_at);
CREATE INDEX IF NOT EXISTS idx_rule_groups_tenant ON rule_groups(tenant_id);
`

const sqliteInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const sqliteGetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
