//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Ryuk reaps the containers after the test process exits.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Schema is applied to every fresh Postgres container.
const Schema = `
CREATE TABLE IF NOT EXISTS assets (
    tag             TEXT PRIMARY KEY,
    sensitivity     TEXT NOT NULL,
    status          TEXT NOT NULL,
    custodian_id    UUID NULL,
    site_id         UUID NOT NULL,
    last_sighted_at TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS approvals (
    id            UUID PRIMARY KEY,
    asset_tag     TEXT NOT NULL,
    requester_id  UUID NOT NULL,
    action        TEXT NOT NULL,
    target_user   UUID NULL,
    site_id       UUID NOT NULL,
    justification TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL,
    status        TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    resolver_id   UUID NULL,
    resolved_at   TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS approvals_pending_idx
    ON approvals (asset_tag, requester_id, action) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS ledger_records (
    sequence     BIGINT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    ts           TIMESTAMPTZ NOT NULL,
    actor_id     UUID NOT NULL,
    target_user  UUID NULL,
    asset_tag    TEXT NOT NULL,
    site_id      UUID NOT NULL,
    action       TEXT NOT NULL,
    outcome      TEXT NOT NULL,
    reason       TEXT NOT NULL,
    verification JSONB NOT NULL,
    prev_hash    TEXT NOT NULL,
    event_hash   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_records_asset_idx ON ledger_records (asset_tag);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// custody schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	DSN       string
}

// NewPostgresContainer starts a Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("custos"),
		tcpostgres.WithUsername("custos"),
		tcpostgres.WithPassword("custos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, DSN: dsn}
}

// TruncateTables empties the named tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
