// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regharvest/regharvest/internal/registry"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for
// practitioner rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts practitioner records into Postgres. Extraction runs
// revisit IDs, so writes are idempotent on reg_id.
type RecordStore struct {
	pool  execCloser
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "practitioners"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "practitioners"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert inserts the record, replacing any existing row for the same reg_id.
func (s *RecordStore) Upsert(ctx context.Context, rec *registry.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if rec.RegID == "" {
		return fmt.Errorf("record reg_id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	reg_id,
	name,
	profession,
	division,
	registration_type,
	registration_status,
	first_registered,
	expiry_date,
	conditions,
	endorsements,
	qualifications,
	languages,
	gender,
	suburb,
	state,
	postcode,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (reg_id) DO UPDATE SET
	name = EXCLUDED.name,
	profession = EXCLUDED.profession,
	division = EXCLUDED.division,
	registration_type = EXCLUDED.registration_type,
	registration_status = EXCLUDED.registration_status,
	first_registered = EXCLUDED.first_registered,
	expiry_date = EXCLUDED.expiry_date,
	conditions = EXCLUDED.conditions,
	endorsements = EXCLUDED.endorsements,
	qualifications = EXCLUDED.qualifications,
	languages = EXCLUDED.languages,
	gender = EXCLUDED.gender,
	suburb = EXCLUDED.suburb,
	state = EXCLUDED.state,
	postcode = EXCLUDED.postcode,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		rec.RegID,
		rec.Name,
		rec.Profession,
		rec.Division,
		rec.RegistrationType,
		rec.RegistrationStatus,
		rec.FirstRegistered,
		rec.ExpiryDate,
		rec.Conditions,
		rec.Endorsements,
		rec.Qualifications,
		rec.Languages,
		rec.Gender,
		rec.Suburb,
		rec.State,
		rec.Postcode,
		time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert practitioner: %w", err)
	}
	return nil
}
