package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rmoraes/epistock/internal/model"
)

// labelSequenceCounter names the counters row backing label sequence numbers.
const labelSequenceCounter = "label_sequence"

// nextSequence atomically increments and returns the named counter. It runs
// as the first statement of a write transaction, which also takes SQLite's
// write lock up front so concurrent allocators serialize and can never
// observe the same next value.
func nextSequence(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = value + 1
		 RETURNING value`, name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %q: %w", name, err)
	}
	return value, nil
}

// EnqueueLabel creates a pending label for an item, resolved by id when
// itemID > 0, otherwise by code. The item's current name and code are
// snapshotted into the label row; the sequence number is allocated and
// consumed within the same transaction.
func EnqueueLabel(ctx context.Context, db *sql.DB, itemID int64, code string) (*model.Label, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSequence(ctx, tx, labelSequenceCounter)
	if err != nil {
		return nil, err
	}

	var row *sql.Row
	if itemID > 0 {
		row = tx.QueryRowContext(ctx, `SELECT id, name, code FROM items WHERE id = ?`, itemID)
	} else {
		row = tx.QueryRowContext(ctx, `SELECT id, name, code FROM items WHERE code = ?`, code)
	}

	var id int64
	var name, itemCode string
	err = row.Scan(&id, &name, &itemCode)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO labels (item_id, code, name, sequence_number, status)
		 VALUES (?, ?, ?, ?, ?)`,
		id, itemCode, name, seq, model.LabelStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("creating label: %w", err)
	}

	labelID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting label id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing label: %w", err)
	}

	return GetLabel(ctx, db, labelID)
}

// GetLabel returns a label by ID, or nil if it does not exist.
func GetLabel(ctx context.Context, db *sql.DB, id int64) (*model.Label, error) {
	l := &model.Label{}
	err := db.QueryRowContext(ctx,
		`SELECT id, item_id, code, name, sequence_number, status, created_at, printed_at
		 FROM labels WHERE id = ?`, id,
	).Scan(&l.ID, &l.ItemID, &l.Code, &l.Name, &l.SequenceNumber, &l.Status, &l.CreatedAt, &l.PrintedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting label: %w", err)
	}
	return l, nil
}

// ListPendingLabels returns all pending labels, most recently created first.
func ListPendingLabels(ctx context.Context, db *sql.DB) ([]model.Label, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, code, name, sequence_number, status, created_at, printed_at
		 FROM labels WHERE status = ? ORDER BY id DESC`, model.LabelStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending labels: %w", err)
	}
	defer rows.Close()

	return scanLabels(rows)
}

// LabelsByIDs returns exactly the labels with the given ids, any status.
// Unknown ids are simply absent from the result.
func LabelsByIDs(ctx context.Context, db *sql.DB, ids []int64) ([]model.Label, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, code, name, sequence_number, status, created_at, printed_at
		 FROM labels WHERE id IN (`+placeholders+`) ORDER BY id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting labels by ids: %w", err)
	}
	defer rows.Close()

	return scanLabels(rows)
}

// LabelHistory returns all labels, any status, newest first.
func LabelHistory(ctx context.Context, db *sql.DB) ([]model.Label, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, code, name, sequence_number, status, created_at, printed_at
		 FROM labels ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing label history: %w", err)
	}
	defer rows.Close()

	return scanLabels(rows)
}

// MarkLabelsPrinted transitions the given labels from pending to printed and
// stamps printed_at. Ids that don't resolve or are already printed are
// skipped without error. Returns the number of rows actually updated.
func MarkLabelsPrinted(ctx context.Context, db *sql.DB, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrEmptyRequest
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, 0, len(ids)+1)
	args = append(args, model.LabelStatusPrinted)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, model.LabelStatusPending)

	result, err := db.ExecContext(ctx,
		`UPDATE labels SET status = ?, printed_at = CURRENT_TIMESTAMP
		 WHERE id IN (`+placeholders+`) AND status = ?`, args...,
	)
	if err != nil {
		return 0, fmt.Errorf("marking labels printed: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking update result: %w", err)
	}
	return updated, nil
}

func scanLabels(rows *sql.Rows) ([]model.Label, error) {
	var labels []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Code, &l.Name, &l.SequenceNumber, &l.Status, &l.CreatedAt, &l.PrintedAt); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}
