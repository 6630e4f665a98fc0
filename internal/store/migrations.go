package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create telemetry events",
		SQL: `
			CREATE TABLE telemetry_events (
				id          TEXT PRIMARY KEY,
				kind        TEXT NOT NULL,
				name        TEXT NOT NULL,
				properties  TEXT NOT NULL DEFAULT '{}',
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_telemetry_created ON telemetry_events (created_at);
			CREATE INDEX idx_telemetry_name ON telemetry_events (name);
		`,
	},
	{
		Version: 2,
		Name:    "create rounds and responses",
		SQL: `
			CREATE TABLE rounds (
				id            TEXT PRIMARY KEY,
				query         TEXT NOT NULL,
				backend       TEXT NOT NULL,
				model         TEXT NOT NULL DEFAULT '',
				final_answer  TEXT NOT NULL,
				duration_ms   INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL
			);

			CREATE INDEX idx_rounds_created ON rounds (created_at);

			CREATE TABLE round_responses (
				round_id   TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
				position   INTEGER NOT NULL,
				agent_id   TEXT NOT NULL,
				name       TEXT NOT NULL,
				color      TEXT NOT NULL DEFAULT '',
				emoji      TEXT NOT NULL DEFAULT '',
				content    TEXT NOT NULL,
				PRIMARY KEY (round_id, position)
			);
		`,
	},
}
