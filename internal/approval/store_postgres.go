package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"custos/internal/policy"
	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// PostgresStore persists approval requests.
//
// Schema:
//
//	CREATE TABLE approvals (
//	    id            UUID PRIMARY KEY,
//	    asset_tag     TEXT NOT NULL,
//	    requester_id  UUID NOT NULL,
//	    action        TEXT NOT NULL,
//	    target_user   UUID NULL,
//	    site_id       UUID NOT NULL,
//	    justification TEXT NOT NULL DEFAULT '',
//	    reason        TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    resolver_id   UUID NULL,
//	    resolved_at   TIMESTAMPTZ NULL
//	);
//	CREATE INDEX approvals_pending_idx
//	    ON approvals (asset_tag, requester_id, action) WHERE status = 'PENDING';
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const approvalColumns = `id, asset_tag, requester_id, action, target_user, site_id,
	justification, reason, status, created_at, resolver_id, resolved_at`

func (s *PostgresStore) Create(ctx context.Context, req Request) error {
	var target any
	if req.TargetUser != nil {
		target = uuid.UUID(*req.TargetUser).String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (id, asset_tag, requester_id, action, target_user, site_id,
			justification, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(req.ID).String(), string(req.AssetTag), uuid.UUID(req.Requester).String(),
		string(req.Action), target, uuid.UUID(req.Site).String(),
		req.Justification, string(req.Reason), string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, approvalID id.ApprovalID) (Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+approvalColumns+` FROM approvals WHERE id = $1
	`, uuid.UUID(approvalID).String())
	req, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("get approval: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) FindPending(ctx context.Context, tag id.AssetTag, requester id.UserID, action id.Action) (Request, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+approvalColumns+` FROM approvals
		WHERE asset_tag = $1 AND requester_id = $2 AND action = $3 AND status = 'PENDING'
		ORDER BY created_at LIMIT 1
	`, string(tag), uuid.UUID(requester).String(), string(action))
	req, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, fmt.Errorf("find pending approval: %w", err)
	}
	return req, true, nil
}

// Resolve flips a PENDING request to a terminal status in a single
// conditional UPDATE, so two racing resolvers cannot both win.
func (s *PostgresStore) Resolve(ctx context.Context, approvalID id.ApprovalID, resolver id.UserID, status Status, resolvedAt time.Time) (Request, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE approvals
		SET status = $2, resolver_id = $3, resolved_at = $4
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+approvalColumns+`
	`, uuid.UUID(approvalID).String(), string(status), uuid.UUID(resolver).String(), resolvedAt)
	req, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either unknown or already resolved; one extra read to tell apart.
		if _, getErr := s.Get(ctx, approvalID); errors.Is(getErr, sentinel.ErrNotFound) {
			return Request{}, sentinel.ErrNotFound
		}
		return Request{}, sentinel.ErrResolved
	}
	if err != nil {
		return Request{}, fmt.Errorf("resolve approval: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) List(ctx context.Context, status *Status) ([]Request, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (Request, error) {
	var (
		rawID, tag, requester, action string
		target                        sql.NullString
		site                          string
		justification, reason, status string
		createdAt                     time.Time
		resolver                      sql.NullString
		resolvedAt                    sql.NullTime
	)
	if err := row.Scan(&rawID, &tag, &requester, &action, &target, &site,
		&justification, &reason, &status, &createdAt, &resolver, &resolvedAt); err != nil {
		return Request{}, err
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return Request{}, fmt.Errorf("parse approval id: %w", err)
	}
	requesterID, err := uuid.Parse(requester)
	if err != nil {
		return Request{}, fmt.Errorf("parse requester id: %w", err)
	}
	siteID, err := uuid.Parse(site)
	if err != nil {
		return Request{}, fmt.Errorf("parse site id: %w", err)
	}

	req := Request{
		ID:            id.ApprovalID(parsed),
		AssetTag:      id.AssetTag(tag),
		Requester:     id.UserID(requesterID),
		Action:        id.Action(action),
		Site:          id.SiteID(siteID),
		Justification: justification,
		Reason:        policy.Reason(reason),
		Status:        Status(status),
		CreatedAt:     createdAt.UTC(),
	}
	if target.Valid {
		u, err := uuid.Parse(target.String)
		if err != nil {
			return Request{}, fmt.Errorf("parse target user: %w", err)
		}
		targetID := id.UserID(u)
		req.TargetUser = &targetID
	}
	if resolver.Valid {
		u, err := uuid.Parse(resolver.String)
		if err != nil {
			return Request{}, fmt.Errorf("parse resolver id: %w", err)
		}
		resolverID := id.UserID(u)
		req.Resolver = &resolverID
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		req.ResolvedAt = &t
	}
	return req, nil
}
