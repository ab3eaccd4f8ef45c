// Package postgres implements the document and relational backend adapters
// on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nextcart/platform/internal/domain/product"
	"github.com/nextcart/platform/internal/domain/user"
	"github.com/nextcart/platform/internal/storage"
)

const uniqueViolation = "23505"

// DocumentStore holds users and products as JSON documents.
type DocumentStore struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*DocumentStore)(nil)
var _ storage.ProductStore = (*DocumentStore)(nil)
var _ storage.Pinger = (*DocumentStore)(nil)

// OpenDocumentStore connects to the document database and verifies the
// connection.
func OpenDocumentStore(dsn string) (*DocumentStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{db: db}, nil
}

// NewDocumentStore wraps an existing handle. Intended for tests.
func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Name() string { return "documentStore" }

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *DocumentStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migrations.
func (s *DocumentStore) DB() *sqlx.DB { return s.db }

// --- UserStore ---------------------------------------------------------------

func (s *DocumentStore) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	body, err := marshalUser(u)
	if err != nil {
		return user.User{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (id, email, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, body, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return user.User{}, storage.ErrDuplicate
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *DocumentStore) GetUser(ctx context.Context, id string) (user.User, error) {
	var body []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT body FROM user_documents WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return unmarshalUser(body)
}

func (s *DocumentStore) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var body []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT body FROM user_documents WHERE lower(email) = lower($1)`, email).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, storage.ErrNotFound
	}
	if err != nil {
		return user.User{}, err
	}
	return unmarshalUser(body)
}

func (s *DocumentStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	body, err := marshalUser(u)
	if err != nil {
		return user.User{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_documents SET body = $2, updated_at = $3 WHERE id = $1
	`, u.ID, body, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

// --- ProductStore ------------------------------------------------------------

func (s *DocumentStore) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	body, err := json.Marshal(p)
	if err != nil {
		return product.Product{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO product_documents (id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, body, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *DocumentStore) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var body []byte
	err := s.db.QueryRowxContext(ctx,
		`SELECT body FROM product_documents WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return product.Product{}, err
	}

	var p product.Product
	if err := json.Unmarshal(body, &p); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *DocumentStore) ListProducts(ctx context.Context, limit, offset int) ([]product.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryxContext(ctx, `
		SELECT body FROM product_documents ORDER BY created_at LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p product.Product
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *DocumentStore) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	p.UpdatedAt = time.Now().UTC()
	body, err := json.Marshal(p)
	if err != nil {
		return product.Product{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE product_documents SET body = $2, updated_at = $3 WHERE id = $1
	`, p.ID, body, p.UpdatedAt)
	if err != nil {
		return product.Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return product.Product{}, storage.ErrNotFound
	}
	return p, nil
}

// marshalUser keeps the password hash inside the stored document even though
// the JSON tag hides it from API responses.
func marshalUser(u user.User) ([]byte, error) {
	type stored struct {
		user.User
		PasswordHash string `json:"password_hash"`
	}
	return json.Marshal(stored{User: u, PasswordHash: u.PasswordHash})
}

func unmarshalUser(body []byte) (user.User, error) {
	type stored struct {
		user.User
		PasswordHash string `json:"password_hash"`
	}
	var rec stored
	if err := json.Unmarshal(body, &rec); err != nil {
		return user.User{}, err
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return u, nil
}

func open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
