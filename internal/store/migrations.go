package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// Timestamps are fixed-width RFC 3339 text so they sort lexically.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	color      TEXT NOT NULL DEFAULT '#8B5CF6',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	name             TEXT NOT NULL,
	description      TEXT,
	priority         TEXT NOT NULL CHECK(priority IN ('high', 'medium', 'low')),
	is_personal      INTEGER NOT NULL DEFAULT 0 CHECK(is_personal IN (0, 1)),
	completion_type  TEXT NOT NULL DEFAULT 'done'
		CHECK(completion_type IN ('done', 'percentage', 'stages')),
	completion_value TEXT,
	status           TEXT NOT NULL DEFAULT 'todo'
		CHECK(status IN ('todo', 'in_progress', 'done')),
	category_id      TEXT REFERENCES categories(id) ON DELETE SET NULL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	content     TEXT NOT NULL DEFAULT '',
	category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
	is_personal INTEGER NOT NULL DEFAULT 0 CHECK(is_personal IN (0, 1)),
	is_pinned   INTEGER NOT NULL DEFAULT 0 CHECK(is_pinned IN (0, 1)),
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_categories_user_name ON categories(user_id, name);
CREATE INDEX IF NOT EXISTS idx_notes_user_updated ON notes(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_notes_category_id ON notes(category_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
