package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict means the order's status changed between read and
	// update, e.g. two admins advancing the same order at once.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, o *Order, lines []Line) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Order, []Line, error)
	GetItems(ctx context.Context, orderID string) ([]Line, error)
	GetHistory(ctx context.Context, orderID string) ([]StatusChange, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, trackingNumber string) error
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// Create writes the order, its lines and the first history row in one
// transaction, so a reader can never observe the order without its lines.
func (r *PGRepo) Create(ctx context.Context, o *Order, lines []Line) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, order_number, user_id, status, total, payment_method,
                        payment_intent_id, shipping_address, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,NOW(),NOW())
  `, o.ID, o.OrderNumber, o.UserID, o.Status, o.Total, o.PaymentMethod, o.PaymentIntentID, o.ShippingAddress); err != nil {
		return err
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase, size)
      VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
    `, l.ID, o.ID, l.ProductID, l.Quantity, l.PriceAtPurchase, l.Size); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO order_status_history (order_id, status, note, created_at)
    VALUES ($1,$2,'order created',NOW())
  `, o.ID, o.Status); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the whole aggregate. Only the intake compensation path
// calls this; orders are never deleted through normal flow.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_status_history WHERE order_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

const orderColumns = `id, order_number, user_id, status, total::text, payment_method,
    COALESCE(payment_intent_id,''), shipping_address, COALESCE(tracking_number,''), created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Total, &o.PaymentMethod,
		&o.PaymentIntentID, &o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt)
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Line, error) {
	var o Order
	if err := scanOrder(r.db.QueryRow(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE id=$1
  `, id), &o); err != nil {
		return nil, nil, ErrNotFound
	}
	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, quantity, price_at_purchase::text, COALESCE(size,'')
    FROM order_items
    WHERE order_id = $1
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.PriceAtPurchase, &l.Size); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *PGRepo) GetHistory(ctx context.Context, orderID string) ([]StatusChange, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT order_id, status, COALESCE(note,''), created_at
    FROM order_status_history
    WHERE order_id = $1
    ORDER BY created_at ASC
  `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.OrderID, &sc.Status, &sc.Note, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
    SELECT `+orderColumns+` FROM orders
    ORDER BY created_at DESC LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Total, &o.PaymentMethod,
			&o.PaymentIntentID, &o.ShippingAddress, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus applies one validated transition. The WHERE clause pins the
// expected current status so a concurrent transition makes this a no-op,
// reported as ErrStatusConflict instead of a double apply.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, from, to Status, trackingNumber string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE orders
    SET status = $3,
        tracking_number = COALESCE(NULLIF($4,''), tracking_number),
        updated_at = NOW()
    WHERE id = $1 AND status = $2
  `, id, from, to, trackingNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO order_status_history (order_id, status, note, created_at)
    VALUES ($1,$2,NULLIF($3,''),NOW())
  `, id, to, trackingNumber); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// HasPurchased backs the verified-purchase flag on reviews.
func (r *PGRepo) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var ok bool
	err := r.db.QueryRow(ctx, `
    SELECT EXISTS(
      SELECT 1 FROM orders o
      JOIN order_items i ON i.order_id = o.id
      WHERE o.user_id = $1 AND i.product_id = $2 AND o.status <> 'cancelled'
    )
  `, userID, productID).Scan(&ok)
	return ok, err
}
