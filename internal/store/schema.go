package store

// schemaVersion is bumped whenever the DDL below changes; migrate()
// walks forward from whatever version is recorded in schema_version.
const schemaVersion = 1

const initSchema = `
CREATE TABLE projects (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	hash          TEXT NOT NULL UNIQUE,
	ottofile_path TEXT,
	run_count     INTEGER NOT NULL DEFAULT 0,
	last_seen     INTEGER NOT NULL
);

CREATE TABLE runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id       INTEGER NOT NULL REFERENCES projects(id),
	timestamp        INTEGER NOT NULL,
	status           TEXT NOT NULL,
	duration_seconds REAL,
	size_bytes       INTEGER,
	ottofile_path    TEXT,
	cwd              TEXT,
	user             TEXT,
	hostname         TEXT,
	args             TEXT,
	run_uuid         TEXT,
	ended_at         INTEGER
);
CREATE INDEX idx_runs_project_id ON runs(project_id);
CREATE UNIQUE INDEX idx_runs_timestamp ON runs(timestamp);

CREATE TABLE tasks (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           INTEGER NOT NULL REFERENCES runs(id),
	name             TEXT NOT NULL,
	status           TEXT NOT NULL,
	script_hash      TEXT,
	exit_code        INTEGER,
	started_at       INTEGER,
	ended_at         INTEGER,
	duration_seconds REAL,
	stdout_path      TEXT,
	stderr_path      TEXT,
	script_path      TEXT
);
CREATE INDEX idx_tasks_run_id ON tasks(run_id);
CREATE INDEX idx_tasks_name ON tasks(name);

CREATE TABLE schema_version (
	version    INTEGER NOT NULL,
	applied_at INTEGER NOT NULL
);
`
