package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextcart/platform/internal/domain/order"
	"github.com/nextcart/platform/internal/domain/payment"
	"github.com/nextcart/platform/internal/storage"
)

// RelationalStore holds orders and payments.
type RelationalStore struct {
	db *sqlx.DB
}

var _ storage.OrderStore = (*RelationalStore)(nil)
var _ storage.PaymentStore = (*RelationalStore)(nil)
var _ storage.Pinger = (*RelationalStore)(nil)

// OpenRelationalStore connects to the transactional database and verifies the
// connection.
func OpenRelationalStore(dsn string) (*RelationalStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &RelationalStore{db: db}, nil
}

// NewRelationalStore wraps an existing handle. Intended for tests.
func NewRelationalStore(db *sqlx.DB) *RelationalStore {
	return &RelationalStore{db: db}
}

func (s *RelationalStore) Name() string { return "relationalStore" }

func (s *RelationalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *RelationalStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migrations.
func (s *RelationalStore) DB() *sqlx.DB { return s.db }

// --- OrderStore --------------------------------------------------------------

func (s *RelationalStore) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	items, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, items, total_cents, status, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.UserID, items, o.TotalCents, o.Status, o.ShippingAddress, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func (s *RelationalStore) GetOrder(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowxContext(ctx, `
		SELECT id, user_id, items, total_cents, status, shipping_address, created_at, updated_at
		FROM orders WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (s *RelationalStore) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, user_id, items, total_cents, status, shipping_address, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *RelationalStore) ListOrders(ctx context.Context, limit, offset int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, user_id, items, total_cents, status, shipping_address, created_at, updated_at
		FROM orders ORDER BY created_at LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *RelationalStore) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	o.UpdatedAt = time.Now().UTC()
	items, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET items = $2, total_cents = $3, status = $4, shipping_address = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, items, o.TotalCents, o.Status, o.ShippingAddress, o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

// --- PaymentStore ------------------------------------------------------------

func (s *RelationalStore) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, user_id, amount_cents, status, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OrderID, p.UserID, p.AmountCents, p.Status, p.Reference, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (s *RelationalStore) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	return s.getPayment(ctx, `SELECT id, order_id, user_id, amount_cents, status, reference, created_at, updated_at FROM payments WHERE id = $1`, id)
}

func (s *RelationalStore) GetPaymentByReference(ctx context.Context, reference string) (payment.Payment, error) {
	return s.getPayment(ctx, `SELECT id, order_id, user_id, amount_cents, status, reference, created_at, updated_at FROM payments WHERE reference = $1`, reference)
}

func (s *RelationalStore) getPayment(ctx context.Context, query, arg string) (payment.Payment, error) {
	var p payment.Payment
	err := s.db.QueryRowxContext(ctx, query, arg).Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.AmountCents, &p.Status, &p.Reference, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payment.Payment{}, storage.ErrNotFound
	}
	if err != nil {
		return payment.Payment{}, err
	}
	return p, nil
}

func (s *RelationalStore) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, reference = $3, updated_at = $4 WHERE id = $1
	`, p.ID, p.Status, p.Reference, p.UpdatedAt)
	if err != nil {
		return payment.Payment{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Payment{}, storage.ErrNotFound
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (order.Order, error) {
	var o order.Order
	var items []byte
	err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalCents, &o.Status, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, storage.ErrNotFound
	}
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

func collectOrders(rows *sqlx.Rows) ([]order.Order, error) {
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
