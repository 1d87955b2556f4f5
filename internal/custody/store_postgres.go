package custody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// PostgresStore persists assets in the assets table.
//
// Schema:
//
//	CREATE TABLE assets (
//	    tag             TEXT PRIMARY KEY,
//	    sensitivity     TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    custodian_id    UUID NULL,
//	    site_id         UUID NOT NULL,
//	    last_sighted_at TIMESTAMPTZ NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, tag id.AssetTag) (Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tag, sensitivity, status, custodian_id, site_id, last_sighted_at
		FROM assets WHERE tag = $1
	`, string(tag))
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

func (s *PostgresStore) Save(ctx context.Context, asset Asset) error {
	var custodian any
	if asset.Custodian != nil {
		custodian = uuid.UUID(*asset.Custodian).String()
	}
	var sighted any
	if asset.LastSightedAt != nil {
		sighted = *asset.LastSightedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (tag, sensitivity, status, custodian_id, site_id, last_sighted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tag) DO UPDATE SET
			sensitivity = EXCLUDED.sensitivity,
			status = EXCLUDED.status,
			custodian_id = EXCLUDED.custodian_id,
			site_id = EXCLUDED.site_id,
			last_sighted_at = EXCLUDED.last_sighted_at
	`, string(asset.Tag), string(asset.Sensitivity), string(asset.Status),
		custodian, uuid.UUID(asset.Site).String(), sighted)
	if err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, sensitivity, status, custodian_id, site_id, last_sighted_at
		FROM assets ORDER BY tag
	`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (Asset, error) {
	var (
		tag, sensitivity, status string
		custodian                sql.NullString
		site                     string
		sighted                  sql.NullTime
	)
	if err := row.Scan(&tag, &sensitivity, &status, &custodian, &site, &sighted); err != nil {
		return Asset{}, err
	}

	asset := Asset{
		Tag:         id.AssetTag(tag),
		Sensitivity: id.Sensitivity(sensitivity),
		Status:      Status(status),
	}
	siteID, err := uuid.Parse(site)
	if err != nil {
		return Asset{}, fmt.Errorf("parse site id: %w", err)
	}
	asset.Site = id.SiteID(siteID)

	if custodian.Valid {
		u, err := uuid.Parse(custodian.String)
		if err != nil {
			return Asset{}, fmt.Errorf("parse custodian id: %w", err)
		}
		holder := id.UserID(u)
		asset.Custodian = &holder
	}
	if sighted.Valid {
		t := sighted.Time.UTC()
		asset.LastSightedAt = &t
	}
	return asset, nil
}
