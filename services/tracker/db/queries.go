package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TrackedItem mirrors one row of the tracked_items table.
type TrackedItem struct {
	UserID       string
	ItemID       string
	ItemName     string
	LowestPrice  int64
	BestShopName string
	LastCheck    int64
	CreatedAt    int64
}

const createTrackedItem = `
INSERT INTO tracked_items (user_id, item_id, item_name, created_at)
VALUES (?, ?, ?, ?)
`

type CreateTrackedItemParams struct {
	UserID    string
	ItemID    string
	ItemName  string
	CreatedAt int64
}

func (q *Queries) CreateTrackedItem(ctx context.Context, arg CreateTrackedItemParams) error {
	_, err := q.db.ExecContext(ctx, createTrackedItem,
		arg.UserID,
		arg.ItemID,
		arg.ItemName,
		arg.CreatedAt,
	)
	return err
}

const deleteTrackedItem = `
DELETE FROM tracked_items WHERE user_id = ? AND item_id = ?
`

type DeleteTrackedItemParams struct {
	UserID string
	ItemID string
}

func (q *Queries) DeleteTrackedItem(ctx context.Context, arg DeleteTrackedItemParams) error {
	_, err := q.db.ExecContext(ctx, deleteTrackedItem, arg.UserID, arg.ItemID)
	return err
}

const getAllTrackedItems = `
SELECT user_id, item_id, item_name, lowest_price, best_shop_name, last_check, created_at
FROM tracked_items
ORDER BY rowid
`

func (q *Queries) GetAllTrackedItems(ctx context.Context) ([]TrackedItem, error) {
	rows, err := q.db.QueryContext(ctx, getAllTrackedItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TrackedItem
	for rows.Next() {
		var i TrackedItem
		err := rows.Scan(
			&i.UserID,
			&i.ItemID,
			&i.ItemName,
			&i.LowestPrice,
			&i.BestShopName,
			&i.LastCheck,
			&i.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateTrackedItemPrice = `
UPDATE tracked_items SET lowest_price = ?, best_shop_name = ?
WHERE user_id = ? AND item_id = ?
`

type UpdateTrackedItemPriceParams struct {
	LowestPrice  int64
	BestShopName string
	UserID       string
	ItemID       string
}

func (q *Queries) UpdateTrackedItemPrice(ctx context.Context, arg UpdateTrackedItemPriceParams) error {
	_, err := q.db.ExecContext(ctx, updateTrackedItemPrice,
		arg.LowestPrice,
		arg.BestShopName,
		arg.UserID,
		arg.ItemID,
	)
	return err
}

const updateTrackedItemLastCheck = `
UPDATE tracked_items SET last_check = ?
WHERE user_id = ? AND item_id = ?
`

type UpdateTrackedItemLastCheckParams struct {
	LastCheck int64
	UserID    string
	ItemID    string
}

func (q *Queries) UpdateTrackedItemLastCheck(ctx context.Context, arg UpdateTrackedItemLastCheckParams) error {
	_, err := q.db.ExecContext(ctx, updateTrackedItemLastCheck,
		arg.LastCheck,
		arg.UserID,
		arg.ItemID,
	)
	return err
}
