package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ajjmal/marketplace-system/internal/model"
)

// Outbox event kinds.
const (
	OutboxKindOrderStatus       = "order_status"
	OutboxKindVendorApplication = "vendor_application"
)

// OutboxEvent is a side effect recorded in the same transaction as the state
// change that produced it. The dispatcher delivers events at least once; the
// idempotency key collapses duplicates on redelivery.
type OutboxEvent struct {
	ID             int64
	Kind           string
	Payload        []byte
	IdempotencyKey string
	CreatedAt      time.Time
}

// OrderStatusEvent is the payload of an order status outbox event.
type OrderStatusEvent struct {
	UserID  int64             `json:"user_id"`
	OrderID int64             `json:"order_id"`
	Status  model.OrderStatus `json:"status"`
}

// VendorApplicationEvent is the payload of a vendor application outbox event.
type VendorApplicationEvent struct {
	UserID int64                   `json:"user_id"`
	Status model.RoleRequestStatus `json:"status"`
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (kind, payload, idempotency_key) VALUES ($1, $2, $3)`,
		kind, data, uuid.NewString(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetPendingOutboxEvents returns undispatched events, oldest first.
func (r *PostgresRepository) GetPendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, payload, idempotency_key, created_at
		 FROM outbox
		 WHERE dispatched_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}

// MarkOutboxDispatched records that an event was delivered.
func (r *PostgresRepository) MarkOutboxDispatched(ctx context.Context, eventID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox SET dispatched_at = now() WHERE id = $1`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}
