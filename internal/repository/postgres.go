// Package repository contains the PostgreSQL data access layer.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound is returned when a referenced user does not exist.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound is returned when a referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound is returned when an order item references a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when checkout asks for more units than are in stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition is returned when an order status change violates the transition table.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrRequestNotFound is returned when a role request does not exist.
	ErrRequestNotFound = errors.New("role request not found")
	// ErrRequestNotPending is returned when a role request was already processed.
	ErrRequestNotPending = errors.New("role request is not pending")
	// ErrRequestPending is returned when a pending request already exists for the same user and role.
	ErrRequestPending = errors.New("pending role request already exists")
	// ErrRoleAlreadyHeld is returned when the user already holds the requested role.
	ErrRoleAlreadyHeld = errors.New("user already has this role")
	// ErrNotRequestOwner is returned when someone other than the requester cancels a request.
	ErrNotRequestOwner = errors.New("request belongs to another user")
	// ErrVendorProfileExists is returned when a user already owns a vendor profile.
	ErrVendorProfileExists = errors.New("vendor profile already exists")
	// ErrVendorProfileNotFound is returned when a user owns no vendor profile.
	ErrVendorProfileNotFound = errors.New("vendor profile not found")
	// ErrAssignmentNotFound is returned when no active assignment matches (user, role).
	ErrAssignmentNotFound = errors.New("role assignment not found")
	// ErrNotificationNotFound is returned when a notification does not exist or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")
)

// PostgresRepository provides access to the marketplace data store.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository and initializes the schema via migrations.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry re-runs fn on serialization failures, deadlocks and transient
// connection errors with fibonacci backoff.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser registers a marketplace user.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, phone string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, phone) VALUES ($1, $2) RETURNING id`,
		name, phone,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// UserExists reports whether a user with the given id exists.
func (r *PostgresRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// CreateProduct adds a product to a vendor's catalog. Price is in dirhams.
func (r *PostgresRepository) CreateProduct(ctx context.Context, vendorID int64, name string, price int64, stock int32) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (vendor_id, name, price, stock_quantity) VALUES ($1, $2, $3, $4) RETURNING id`,
		vendorID, name, price, stock,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// GetProductStock returns the current stock quantity of a product.
func (r *PostgresRepository) GetProductStock(ctx context.Context, productID int64) (int32, error) {
	var stock int32
	err := r.pool.QueryRow(ctx,
		`SELECT stock_quantity FROM products WHERE id = $1`,
		productID,
	).Scan(&stock)
	if err != nil {
		if isNoRows(err) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("get product stock: %w", err)
	}
	return stock, nil
}
