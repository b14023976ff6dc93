package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rax0nrax/punyfunny/pkg/idn"
)

// PostgresStore keeps records in registry.records with the full record as
// JSONB. The schema ships in pkg/database/sql.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Get(ctx context.Context, label string) (*Record, error) {
	var payload []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, updated_at
		FROM registry.records
		WHERE label = $1
	`, label).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record %q: %w", label, err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", label, err)
	}
	rec.UpdatedAt = updatedAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) Set(ctx context.Context, rec *Record) error {
	out, wire, payload, err := s.encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO registry.records (label, wire_label, kind, owner_id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (label) DO UPDATE SET
			kind = EXCLUDED.kind,
			owner_id = EXCLUDED.owner_id,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, out.Subdomain, wire, string(out.Kind), out.OwnerID, payload, out.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", out.Subdomain, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	out, wire, payload, err := s.encode(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registry.records (label, wire_label, kind, owner_id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, out.Subdomain, wire, string(out.Kind), out.OwnerID, payload, out.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert record %q: %w", out.Subdomain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record %q: %w", out.Subdomain, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) encode(rec *Record) (*Record, string, []byte, error) {
	out, err := prepare(rec, s.now())
	if err != nil {
		return nil, "", nil, err
	}
	wire, err := idn.Encode(out.Subdomain)
	if err != nil {
		return nil, "", nil, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, "", nil, fmt.Errorf("encode record: %w", err)
	}
	return out, wire, payload, nil
}
