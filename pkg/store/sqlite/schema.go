package sqlite

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
    key             TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    type            TEXT NOT NULL DEFAULT 'unclassified',
    description     TEXT NOT NULL DEFAULT '',
    importance      TEXT NOT NULL DEFAULT 'medium',
    importance_rank INTEGER NOT NULL DEFAULT 2,
    key_facts       TEXT NOT NULL DEFAULT '[]',
    inferred        INTEGER NOT NULL DEFAULT 0,
    relevance_score REAL NOT NULL DEFAULT 0,
    sources         TEXT NOT NULL DEFAULT '[]',
    seq             INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS relationships (
    source_key  TEXT NOT NULL REFERENCES entities (key) ON DELETE CASCADE,
    relation    TEXT NOT NULL,
    target_key  TEXT NOT NULL REFERENCES entities (key) ON DELETE CASCADE,
    source      TEXT NOT NULL,
    target      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    strength    TEXT NOT NULL DEFAULT 'medium',
    inferred    INTEGER NOT NULL DEFAULT 0,
    sources     TEXT NOT NULL DEFAULT '[]',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (source_key, relation, target_key)
);

CREATE TABLE IF NOT EXISTS queries (
    text         TEXT PRIMARY KEY,
    query_count  INTEGER NOT NULL DEFAULT 1,
    last_queried DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS query_entities (
    query_text TEXT NOT NULL REFERENCES queries (text) ON DELETE CASCADE,
    entity_key TEXT NOT NULL REFERENCES entities (key) ON DELETE CASCADE,
    PRIMARY KEY (query_text, entity_key)
);
`
