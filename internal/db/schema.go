package db

// schema holds the table definitions, executed in order on startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS owners (
		username       TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		email          TEXT NOT NULL DEFAULT '',
		mobile_no      TEXT NOT NULL DEFAULT '',
		profile_prompt TEXT NOT NULL DEFAULT '',
		style_prompt   TEXT NOT NULL DEFAULT '',
		daily_tasks    TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		updated_at     INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`,

	`CREATE TABLE IF NOT EXISTS contributions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		owner            TEXT NOT NULL REFERENCES owners(username),
		question         TEXT NOT NULL,
		answer           TEXT NOT NULL,
		contributor_name TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at       INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		reviewed_at      INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contributions_owner_status ON contributions(owner, status)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		unique_task_id      TEXT PRIMARY KEY,
		owner               TEXT NOT NULL REFERENCES owners(username),
		task_question       TEXT NOT NULL,
		task_description    TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL DEFAULT 'inprogress',
		topic_context       TEXT NOT NULL DEFAULT '',
		is_self_task        INTEGER NOT NULL DEFAULT 0,
		visitor_name        TEXT NOT NULL DEFAULT '',
		visitor_username    TEXT NOT NULL DEFAULT '',
		visitor_email       TEXT NOT NULL DEFAULT '',
		is_meeting          INTEGER NOT NULL DEFAULT 0,
		meeting_title       TEXT NOT NULL DEFAULT '',
		meeting_description TEXT NOT NULL DEFAULT '',
		meeting_date        TEXT NOT NULL DEFAULT '',
		meeting_time        TEXT NOT NULL DEFAULT '',
		meeting_duration    INTEGER NOT NULL DEFAULT 0,
		meeting_status      TEXT NOT NULL DEFAULT '',
		restricted_group    TEXT NOT NULL DEFAULT '',
		created_at          INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		updated_at          INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner, status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_meeting ON tasks(is_meeting, meeting_status)`,

	`CREATE TABLE IF NOT EXISTS meetings (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL,
		owner      TEXT NOT NULL,
		meet_link  TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		duration   TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	)`,

	`CREATE TABLE IF NOT EXISTS visits (
		owner            TEXT NOT NULL,
		visitor_username TEXT NOT NULL,
		visitor_name     TEXT NOT NULL DEFAULT '',
		is_guest         INTEGER NOT NULL DEFAULT 0,
		visit_count      INTEGER NOT NULL DEFAULT 0,
		last_seen        INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner, visitor_username)
	)`,

	`CREATE TABLE IF NOT EXISTS access_groups (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		owner      TEXT NOT NULL REFERENCES owners(username),
		name       TEXT NOT NULL,
		members    TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		UNIQUE (owner, name)
	)`,

	`CREATE TABLE IF NOT EXISTS llm_cache (
		hash       TEXT PRIMARY KEY,
		prompt     TEXT NOT NULL,
		response   TEXT NOT NULL,
		model      TEXT NOT NULL,
		tokens     INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		expires_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS usage (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		ts          INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		service     TEXT NOT NULL,
		action      TEXT NOT NULL,
		tokens      INTEGER NOT NULL DEFAULT 0,
		cost        REAL NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT ''
	)`,
}
