package storage

var schemaStatements = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS endpoints (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		config TEXT NOT NULL DEFAULT '{}',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scim_id TEXT NOT NULL,
		endpoint_id TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
		external_id TEXT,
		user_name TEXT NOT NULL,
		user_name_lower TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		raw_payload TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(endpoint_id, user_name_lower),
		UNIQUE(endpoint_id, scim_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_id ON users(endpoint_id, external_id) WHERE external_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_users_endpoint ON users(endpoint_id)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scim_id TEXT NOT NULL,
		endpoint_id TEXT NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
		external_id TEXT,
		display_name TEXT NOT NULL,
		display_name_lower TEXT NOT NULL,
		raw_payload TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(endpoint_id, display_name_lower),
		UNIQUE(endpoint_id, scim_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_groups_external_id ON groups(endpoint_id, external_id) WHERE external_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_groups_endpoint ON groups(endpoint_id)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		member_scim_id TEXT,
		value TEXT NOT NULL,
		display TEXT,
		member_type TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_group_members_group ON group_members(group_id)`,
	`CREATE TABLE IF NOT EXISTS request_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint_id TEXT,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		request_headers TEXT,
		request_body TEXT,
		response_headers TEXT,
		response_body TEXT,
		identifier TEXT,
		error_message TEXT,
		error_stack TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_logs_endpoint ON request_logs(endpoint_id)`,
	`CREATE INDEX IF NOT EXISTS idx_request_logs_created ON request_logs(created_at)`,
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
