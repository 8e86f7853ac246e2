package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rmoraes/epistock/internal/model"
)

// HandOut decrements stock for the item with the given code and appends a
// movement, both in one transaction. The balance is floored at zero instead
// of failing; the movement keeps the requested quantity even when the
// decrement is clamped. Returns the updated item and the new movement.
func HandOut(ctx context.Context, db *sql.DB, code, recipient string, quantity int) (*model.Item, *model.Movement, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item := &model.Item{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, code, balance, created_at, updated_at
		 FROM items WHERE code = ?`, code,
	).Scan(&item.ID, &item.Name, &item.Code, &item.Balance, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, ErrItemNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting item: %w", err)
	}

	newBalance := item.Balance - quantity
	if newBalance < 0 {
		newBalance = 0
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newBalance, item.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating balance: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO movements (item_id, quantity, recipient) VALUES (?, ?, ?)`,
		item.ID, quantity, recipient,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("recording movement: %w", err)
	}

	movementID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("getting movement id: %w", err)
	}

	movement := &model.Movement{ItemName: item.Name, ItemCode: item.Code}
	err = tx.QueryRowContext(ctx,
		`SELECT id, item_id, quantity, recipient, moved_at FROM movements WHERE id = ?`,
		movementID,
	).Scan(&movement.ID, &movement.ItemID, &movement.Quantity, &movement.Recipient, &movement.MovedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("getting movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing hand-out: %w", err)
	}

	item.Balance = newBalance
	return item, movement, nil
}

// Replenish increases an item's balance. A non-positive quantity is a silent
// no-op, not an error; the unchanged item is returned with applied=false.
// Replenishments are not recorded as movements.
func Replenish(ctx context.Context, db *sql.DB, itemID int64, quantity int) (*model.Item, bool, error) {
	if quantity <= 0 {
		item, err := GetItem(ctx, db, itemID)
		if err != nil {
			return nil, false, err
		}
		if item == nil {
			return nil, false, ErrItemNotFound
		}
		return item, false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRowContext(ctx, `SELECT balance FROM items WHERE id = ?`, itemID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, false, ErrItemNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		balance+quantity, itemID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("updating balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing replenishment: %w", err)
	}

	item, err := GetItem(ctx, db, itemID)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// ListMovements returns hand-out history joined with item names and codes,
// oldest first. Filters are optional: recipient matches case-insensitively,
// fromDate and toDate compare the date part (YYYY-MM-DD).
func ListMovements(ctx context.Context, db *sql.DB, recipient, fromDate, toDate string) ([]model.Movement, error) {
	query := `SELECT m.id, m.item_id, m.quantity, m.recipient, m.moved_at,
	                 i.name AS item_name, i.code AS item_code
	          FROM movements m
	          JOIN items i ON i.id = m.item_id
	          WHERE 1=1`
	var args []any

	if recipient != "" {
		query += ` AND LOWER(m.recipient) = LOWER(?)`
		args = append(args, recipient)
	}
	if fromDate != "" {
		query += ` AND date(m.moved_at) >= ?`
		args = append(args, fromDate)
	}
	if toDate != "" {
		query += ` AND date(m.moved_at) <= ?`
		args = append(args, toDate)
	}

	query += ` ORDER BY m.moved_at ASC, m.id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Quantity, &m.Recipient, &m.MovedAt, &m.ItemName, &m.ItemCode); err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListRecipients returns the distinct recipients seen in the movement
// history, for report filter suggestions.
func ListRecipients(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT recipient FROM movements ORDER BY recipient`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
