package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Herald store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("herald")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_herald_rules",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS herald_rules (
    id                     TEXT PRIMARY KEY,
    owner_user_id          TEXT NOT NULL,
    name                   TEXT NOT NULL DEFAULT '',
    active                 BOOLEAN NOT NULL DEFAULT FALSE,
    trigger_kind           TEXT NOT NULL,
    action_kind            TEXT NOT NULL DEFAULT 'static_message',
    keywords               TEXT[] NOT NULL DEFAULT '{}',
    scope_post_ids         TEXT[] NOT NULL DEFAULT '{}',
    response_template      TEXT NOT NULL DEFAULT '',
    ai_prompt_template     TEXT NOT NULL DEFAULT '',
    fallback_message       TEXT NOT NULL DEFAULT '',
    private_reply_template TEXT NOT NULL DEFAULT '',
    smart_follower         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_herald_rules_owner_active ON herald_rules (owner_user_id) WHERE active;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS herald_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_herald_accounts",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS herald_accounts (
    id                  TEXT PRIMARY KEY,
    owner_user_id       TEXT NOT NULL UNIQUE,
    external_account_id TEXT NOT NULL UNIQUE,
    username            TEXT NOT NULL DEFAULT '',
    access_token        TEXT NOT NULL DEFAULT '',
    capability_scopes   TEXT[] NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS herald_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_herald_followers",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS herald_followers (
    id            TEXT PRIMARY KEY,
    owner_user_id TEXT NOT NULL,
    actor_id      TEXT NOT NULL,
    username      TEXT NOT NULL DEFAULT '',
    followed_at   TIMESTAMPTZ,
    commented_at  TIMESTAMPTZ,
    trust         TEXT NOT NULL DEFAULT 'unknown',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (owner_user_id, actor_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS herald_followers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_herald_trigger_logs",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS herald_trigger_logs (
    id              TEXT PRIMARY KEY,
    automation_id   TEXT NOT NULL,
    trigger_kind    TEXT NOT NULL,
    trigger_text    TEXT NOT NULL DEFAULT '',
    actor_id        TEXT NOT NULL,
    actor_username  TEXT NOT NULL DEFAULT '',
    is_new_follower BOOLEAN NOT NULL DEFAULT FALSE,
    event_id        TEXT NOT NULL DEFAULT '',
    triggered_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_herald_trigger_logs_recent ON herald_trigger_logs (automation_id, actor_id, triggered_at DESC);

CREATE TABLE IF NOT EXISTS herald_trigger_claims (
    id            TEXT PRIMARY KEY,
    key           TEXT NOT NULL,
    automation_id TEXT NOT NULL,
    actor_id      TEXT NOT NULL,
    text_hash     TEXT NOT NULL,
    bucket        BIGINT NOT NULL,
    claimed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_herald_trigger_claims_key ON herald_trigger_claims (key);
CREATE INDEX IF NOT EXISTS idx_herald_trigger_claims_claimed ON herald_trigger_claims (claimed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS herald_trigger_claims;
DROP TABLE IF EXISTS herald_trigger_logs;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_herald_failures",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS herald_failures (
    id               TEXT PRIMARY KEY,
    automation_id    TEXT NOT NULL,
    owner_user_id    TEXT NOT NULL DEFAULT '',
    event_id         TEXT NOT NULL DEFAULT '',
    event_kind       TEXT NOT NULL DEFAULT '',
    actor_id         TEXT NOT NULL DEFAULT '',
    action           TEXT NOT NULL DEFAULT '',
    message          TEXT NOT NULL DEFAULT '',
    error            TEXT NOT NULL DEFAULT '',
    attempt_count    INT NOT NULL DEFAULT 0,
    last_status_code INT NOT NULL DEFAULT 0,
    failed_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_herald_failures_owner ON herald_failures (owner_user_id, failed_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS herald_failures`)
				return err
			},
		},
	)
}
