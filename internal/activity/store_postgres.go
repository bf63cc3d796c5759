package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "syncline/pkg/platform/tx"
)

// PostgresStore persists events in the activity_events table. Sequence
// numbers come from the org_sequences counter table, bumped with
// UPDATE ... RETURNING inside the caller's transaction: two transactions
// writing the same organization serialize on that row, while different
// organizations touch different rows and never contend. A rollback discards
// both the counter bump and the event, so no gaps appear.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.SQL(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event *Event) error {
	ex := s.execer(ctx)

	var seq int64
	err := ex.QueryRowContext(ctx, `
		INSERT INTO org_sequences (organization_id, seq)
		VALUES ($1, 1)
		ON CONFLICT (organization_id)
		DO UPDATE SET seq = org_sequences.seq + 1
		RETURNING seq
	`, event.OrganizationID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("bump org sequence: %w", err)
	}
	event.Seq = seq

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	var txJSON []byte
	if event.Tx != nil {
		txJSON, err = json.Marshal(event.Tx)
		if err != nil {
			return fmt.Errorf("marshal tx descriptor: %w", err)
		}
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO activity_events (id, organization_id, seq, entity_type, entity_id, action, tx, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, event.ID, event.OrganizationID, event.Seq, event.EntityType, event.EntityID, string(event.Action), txJSON, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSince(ctx context.Context, organizationID string, afterSeq int64, limit int) ([]Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, organization_id, seq, entity_type, entity_id, action, tx, occurred_at
		FROM activity_events
		WHERE organization_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`, organizationID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev     Event
			action string
			txJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.Seq, &ev.EntityType, &ev.EntityID, &action, &txJSON, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		ev.Action = Action(action)
		if len(txJSON) > 0 {
			ev.Tx = &TxDescriptor{}
			if err := json.Unmarshal(txJSON, ev.Tx); err != nil {
				return nil, fmt.Errorf("unmarshal tx descriptor: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) LatestSeq(ctx context.Context, organizationID string) (int64, error) {
	var seq int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT seq FROM org_sequences WHERE organization_id = $1
	`, organizationID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}
