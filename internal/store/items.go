package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rmoraes/epistock/internal/model"
)

// CreateItem registers a new stock item. A blank code is allocated
// sequentially from the current maximum item id (EPI000001, ...); a supplied
// code must not collide with any existing item. The uniqueness check, code
// allocation and insert run in one transaction.
func CreateItem(ctx context.Context, db *sql.DB, name, code string, balance int) (*model.Item, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if balance < 0 {
		return nil, fmt.Errorf("%w: balance must be >= 0", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if code != "" {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE code = ?`, code).Scan(&exists)
		if err == nil {
			return nil, ErrDuplicateCode
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("checking code uniqueness: %w", err)
		}
	} else {
		code, err = nextItemCode(ctx, tx)
		if err != nil {
			return nil, err
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (name, code, balance) VALUES (?, ?, ?)`,
		name, code, balance,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// nextItemCode computes the next generated item code from the id generator's
// high-water mark, which AUTOINCREMENT never rewinds. MAX(id) would shrink
// when the newest item is deleted and re-issue its code. The sqlite_sequence
// row only exists once the first item has been inserted.
func nextItemCode(ctx context.Context, tx *sql.Tx) (string, error) {
	var next int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'items'), 0) + 1`,
	).Scan(&next)
	if err != nil {
		return "", fmt.Errorf("allocating item code: %w", err)
	}
	return fmt.Sprintf("%s%06d", model.CodePrefix, next), nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, `SELECT id, name, code, balance, created_at, updated_at
	                         FROM items WHERE id = ?`, id)
}

// GetItemByCode returns an item by business code, or nil if it does not exist.
func GetItemByCode(ctx context.Context, db *sql.DB, code string) (*model.Item, error) {
	return getItem(ctx, db, `SELECT id, name, code, balance, created_at, updated_at
	                         FROM items WHERE code = ?`, code)
}

func getItem(ctx context.Context, db *sql.DB, query string, arg any) (*model.Item, error) {
	item := &model.Item{}
	err := db.QueryRowContext(ctx, query, arg).Scan(
		&item.ID, &item.Name, &item.Code, &item.Balance, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items ordered by name. A non-empty search term
// filters by substring match on name or code.
func ListItems(ctx context.Context, db *sql.DB, search string) ([]model.Item, error) {
	var rows *sql.Rows
	var err error

	if search != "" {
		like := "%" + search + "%"
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, code, balance, created_at, updated_at
			 FROM items WHERE name LIKE ? OR code LIKE ? ORDER BY name`, like, like,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT id, name, code, balance, created_at, updated_at
			 FROM items ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Code, &item.Balance, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem edits an item's name, code and balance. The code must be unique
// among other items; keeping the item's own code is allowed. Labels already
// issued keep their snapshot of the previous name and code.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, name, code string, balance int) (*model.Item, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if balance < 0 {
		return nil, fmt.Errorf("%w: balance must be >= 0", ErrValidation)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}

	var conflict int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM items WHERE code = ? AND id <> ?`, code, id,
	).Scan(&conflict)
	if err == nil {
		return nil, ErrDuplicateCode
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking code uniqueness: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET name = ?, code = ?, balance = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, code, balance, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	return GetItem(ctx, db, id)
}

// DeleteItem removes an item together with its movements and labels.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Explicit deletes rather than relying on the cascade alone; the
	// foreign_keys pragma is per-connection in SQLite.
	if _, err := tx.ExecContext(ctx, `DELETE FROM movements WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting item movements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting item labels: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item deletion: %w", err)
	}
	return nil
}
