package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"custos/internal/policy"
	"custos/internal/verification"
	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// PostgresStore persists ledger records. The PRIMARY KEY on sequence is the
// backstop against double-append: a second writer hits a unique violation
// instead of silently forking the chain.
//
// Schema:
//
//	CREATE TABLE ledger_records (
//	    sequence     BIGINT PRIMARY KEY,
//	    event_type   TEXT NOT NULL,
//	    ts           TIMESTAMPTZ NOT NULL,
//	    actor_id     UUID NOT NULL,
//	    target_user  UUID NULL,
//	    asset_tag    TEXT NOT NULL,
//	    site_id      UUID NOT NULL,
//	    action       TEXT NOT NULL,
//	    outcome      TEXT NOT NULL,
//	    reason       TEXT NOT NULL,
//	    verification JSONB NOT NULL,
//	    prev_hash    TEXT NOT NULL,
//	    event_hash   TEXT NOT NULL
//	);
//	CREATE INDEX ledger_records_asset_idx ON ledger_records (asset_tag);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ledgerColumns = `sequence, event_type, ts, actor_id, target_user, asset_tag,
	site_id, action, outcome, reason, verification, prev_hash, event_hash`

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	var target any
	if rec.TargetUser != nil {
		target = uuid.UUID(*rec.TargetUser).String()
	}
	summary, err := json.Marshal(rec.Verification)
	if err != nil {
		return fmt.Errorf("encode verification summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_records (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, rec.Sequence, string(rec.EventType), rec.Timestamp,
		uuid.UUID(rec.Actor).String(), target, string(rec.AssetTag),
		uuid.UUID(rec.Site).String(), string(rec.Action),
		string(rec.Outcome), string(rec.Reason), summary,
		rec.PrevHash, rec.EventHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append ledger record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Last(ctx context.Context) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_records
		ORDER BY sequence DESC LIMIT 1
	`)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("last ledger record: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.EventType != nil {
		clauses = append(clauses, "event_type = "+arg(string(*filter.EventType)))
	}
	if filter.Outcome != nil {
		clauses = append(clauses, "outcome = "+arg(string(*filter.Outcome)))
	}
	if filter.AssetTag != nil {
		clauses = append(clauses, "asset_tag = "+arg(string(*filter.AssetTag)))
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_records`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY sequence`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		sequence            uint64
		eventType           string
		ts                  time.Time
		actor               string
		target              sql.NullString
		tag, site, action   string
		outcome, reason     string
		summary             []byte
		prevHash, eventHash string
	)
	if err := row.Scan(&sequence, &eventType, &ts, &actor, &target, &tag,
		&site, &action, &outcome, &reason, &summary, &prevHash, &eventHash); err != nil {
		return Record{}, err
	}

	actorID, err := uuid.Parse(actor)
	if err != nil {
		return Record{}, fmt.Errorf("parse actor id: %w", err)
	}
	siteID, err := uuid.Parse(site)
	if err != nil {
		return Record{}, fmt.Errorf("parse site id: %w", err)
	}

	rec := Record{
		Sequence:  sequence,
		EventType: EventType(eventType),
		Timestamp: ts.UTC(),
		Actor:     id.UserID(actorID),
		AssetTag:  id.AssetTag(tag),
		Site:      id.SiteID(siteID),
		Action:    id.Action(action),
		Outcome:   policy.Outcome(outcome),
		Reason:    policy.Reason(reason),
		PrevHash:  prevHash,
		EventHash: eventHash,
	}
	if target.Valid {
		u, err := uuid.Parse(target.String)
		if err != nil {
			return Record{}, fmt.Errorf("parse target user: %w", err)
		}
		targetID := id.UserID(u)
		rec.TargetUser = &targetID
	}
	var vs verification.Summary
	if err := json.Unmarshal(summary, &vs); err != nil {
		return Record{}, fmt.Errorf("decode verification summary: %w", err)
	}
	rec.Verification = vs
	return rec, nil
}
