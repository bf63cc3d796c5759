package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"syncline/pkg/platform/sentinel"
	txcontext "syncline/pkg/platform/tx"
)

// PostgresStore persists records in the entity_records table. Reads and
// writes join the ambient scoped transaction, so row-level security policies
// driven by the tenant session variables apply. The version check rides the
// UPDATE/DELETE predicate: zero rows affected plus an existence probe
// distinguishes a conflict from not-found.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.SQL(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, organizationID, entityType, id string) (*Record, error) {
	var (
		record     Record
		attrsJSON  []byte
		fieldsJSON []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, organization_id, entity_type, attrs, tx_id, source_id, tx_version, field_versions, public, created_at, updated_at
		FROM entity_records
		WHERE organization_id = $1 AND entity_type = $2 AND id = $3
	`, organizationID, entityType, id).Scan(
		&record.ID, &record.OrganizationID, &record.EntityType, &attrsJSON,
		&record.Tx.ID, &record.Tx.SourceID, &record.Tx.Version, &fieldsJSON,
		&record.Public, &record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity record: %w", err)
	}
	if err := json.Unmarshal(attrsJSON, &record.Attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attrs: %w", err)
	}
	if err := json.Unmarshal(fieldsJSON, &record.Tx.FieldVersions); err != nil {
		return nil, fmt.Errorf("unmarshal field versions: %w", err)
	}
	return &record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record *Record) error {
	attrsJSON, fieldsJSON, err := marshalRecord(record)
	if err != nil {
		return err
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO entity_records (id, organization_id, entity_type, attrs, tx_id, source_id, tx_version, field_versions, public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.OrganizationID, record.EntityType, attrsJSON,
		record.Tx.ID, record.Tx.SourceID, record.Tx.Version, fieldsJSON,
		record.Public, record.CreatedAt, record.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert entity record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, record *Record, expectedVersion int64) error {
	attrsJSON, fieldsJSON, err := marshalRecord(record)
	if err != nil {
		return err
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE entity_records
		SET attrs = $1, tx_id = $2, source_id = $3, tx_version = $4, field_versions = $5, public = $6, updated_at = $7
		WHERE organization_id = $8 AND entity_type = $9 AND id = $10 AND tx_version = $11
	`, attrsJSON, record.Tx.ID, record.Tx.SourceID, record.Tx.Version, fieldsJSON,
		record.Public, record.UpdatedAt,
		record.OrganizationID, record.EntityType, record.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update entity record: %w", err)
	}
	return s.checkAffected(ctx, res, record.OrganizationID, record.EntityType, record.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, organizationID, entityType, id string, expectedVersion int64) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM entity_records
		WHERE organization_id = $1 AND entity_type = $2 AND id = $3 AND tx_version = $4
	`, organizationID, entityType, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("delete entity record: %w", err)
	}
	return s.checkAffected(ctx, res, organizationID, entityType, id)
}

// checkAffected maps a zero-row write to conflict or not-found.
func (s *PostgresStore) checkAffected(ctx context.Context, res sql.Result, organizationID, entityType, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM entity_records WHERE organization_id = $1 AND entity_type = $2 AND id = $3
		)
	`, organizationID, entityType, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("existence probe: %w", err)
	}
	if exists {
		return sentinel.ErrConflict
	}
	return sentinel.ErrNotFound
}

func marshalRecord(record *Record) (attrs, fields []byte, err error) {
	attrs, err = json.Marshal(record.Attrs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal attrs: %w", err)
	}
	fields, err = json.Marshal(record.Tx.FieldVersions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal field versions: %w", err)
	}
	return attrs, fields, nil
}
