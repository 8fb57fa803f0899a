package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajjmal/marketplace-system/internal/model"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// NewOrderItem describes one requested line item at checkout.
type NewOrderItem struct {
	ProductID int64
	Quantity  int32
}

// CreateOrder places an order: locks product rows, decrements stock, recomputes
// the monetary fields and writes the order, its items, the initial PENDING
// history row and the placement notification event in one transaction.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID, vendorID int64, number string, items []NewOrderItem, shipping, tax, discount int64) (*model.Order, error) {
	if len(items) == 0 {
		return nil, errors.New("order has no items")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	var subtotal int64
	orderItems := make([]model.OrderItem, 0, len(items))

	for _, it := range items {
		var (
			name  string
			price int64
			stock int32
		)
		err := tx.QueryRow(ctx,
			`SELECT name, price, stock_quantity FROM products WHERE id = $1 FOR UPDATE`,
			it.ProductID,
		).Scan(&name, &price, &stock)
		if err != nil {
			if isNoRows(err) {
				return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, it.ProductID)
			}
			return nil, fmt.Errorf("select product: %w", err)
		}

		if stock < it.Quantity {
			return nil, fmt.Errorf("%w: product %d has %d of %d", ErrInsufficientStock, it.ProductID, stock, it.Quantity)
		}

		_, err = tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $2 WHERE id = $1`,
			it.ProductID, it.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}

		lineSubtotal := price * int64(it.Quantity)
		subtotal += lineSubtotal

		orderItems = append(orderItems, model.OrderItem{
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Subtotal:    lineSubtotal,
		})
	}

	total := subtotal + shipping + tax - discount

	order := &model.Order{
		Number:        number,
		UserID:        userID,
		VendorID:      vendorID,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		Subtotal:      subtotal,
		Shipping:      shipping,
		Tax:           tax,
		Discount:      discount,
		Total:         total,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (number, user_id, vendor_id, status, payment_status, subtotal, shipping, tax, discount, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, placed_at`,
		order.Number, order.UserID, order.VendorID,
		string(order.Status), string(order.PaymentStatus),
		order.Subtotal, order.Shipping, order.Tax, order.Discount, order.Total,
	).Scan(&order.ID, &order.PlacedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range orderItems {
		orderItems[i].OrderID = order.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			order.ID, orderItems[i].ProductID, orderItems[i].ProductName,
			orderItems[i].Quantity, orderItems[i].UnitPrice, orderItems[i].Subtotal,
		).Scan(&orderItems[i].ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}
	order.Items = orderItems

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, changed_by) VALUES ($1, $2, $3, $4)`,
		order.ID, string(model.OrderStatusPending), "order placed", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert status history: %w", err)
	}

	err = enqueueOutbox(ctx, tx, OutboxKindOrderStatus, OrderStatusEvent{
		UserID:  userID,
		OrderID: order.ID,
		Status:  model.OrderStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return order, nil
}

// UpdateOrderStatus applies a status transition after validating it against the
// transition table. On CANCELLED every line item's stock is restored; the
// terminal-state check makes the restock run at most once per order. Exactly one
// history row is appended per successful call.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus model.OrderStatus, actorID int64, note string) (*model.Order, error) {
	err := r.withRetry(ctx, func() error {
		return r.updateOrderStatusTx(ctx, orderID, newStatus, actorID, note)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrderByID(ctx, orderID)
}

func (r *PostgresRepository) updateOrderStatusTx(ctx context.Context, orderID int64, newStatus model.OrderStatus, actorID int64, note string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		userID  int64
		current string
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE`,
		orderID,
	).Scan(&userID, &current)
	if err != nil {
		if isNoRows(err) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("select order: %w", err)
	}

	if !model.CanTransition(model.OrderStatus(current), newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
	}

	now := time.Now()

	switch newStatus {
	case model.OrderStatusShipped:
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, shipped_at = $3 WHERE id = $1`,
			orderID, string(newStatus), now)
	case model.OrderStatusDelivered:
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, delivered_at = $3 WHERE id = $1`,
			orderID, string(newStatus), now)
	case model.OrderStatusCancelled:
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2, cancelled_at = $3 WHERE id = $1`,
			orderID, string(newStatus), now)
	default:
		_, err = tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`,
			orderID, string(newStatus))
	}
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if newStatus == model.OrderStatusCancelled {
		if err := restockItems(ctx, tx, orderID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, changed_by) VALUES ($1, $2, $3, $4)`,
		orderID, string(newStatus), note, actorID,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	err = enqueueOutbox(ctx, tx, OutboxKindOrderStatus, OrderStatusEvent{
		UserID:  userID,
		OrderID: orderID,
		Status:  newStatus,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func restockItems(ctx context.Context, tx pgx.Tx, orderID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE products p
		 SET stock_quantity = p.stock_quantity + oi.quantity
		 FROM order_items oi
		 WHERE oi.order_id = $1 AND oi.product_id = p.id`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("restock items: %w", err)
	}
	return nil
}

// UpdatePaymentStatus sets the payment status and stamps paid_at when the order
// becomes PAID, clearing it otherwise.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus) (*model.Order, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET payment_status = $2,
		     paid_at = CASE WHEN $2 = 'PAID' THEN now() ELSE NULL END
		 WHERE id = $1`,
		orderID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return r.GetOrderByID(ctx, orderID)
}

// GetOrderByID returns an order with its line items.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, orderID int64) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus string
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, user_id, vendor_id, status, payment_status,
		        subtotal, shipping, tax, discount, total,
		        placed_at, paid_at, shipped_at, delivered_at, cancelled_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.Number, &o.UserID, &o.VendorID, &status, &paymentStatus,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Discount, &o.Total,
		&o.PlacedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &o, nil
}

// GetOrdersByUser returns a user's orders, newest first, without line items.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, user_id, vendor_id, status, payment_status,
		        subtotal, shipping, tax, discount, total,
		        placed_at, paid_at, shipped_at, delivered_at, cancelled_at
		 FROM orders WHERE user_id = $1 ORDER BY placed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var status, paymentStatus string
		err := rows.Scan(&o.ID, &o.Number, &o.UserID, &o.VendorID, &status, &paymentStatus,
			&o.Subtotal, &o.Shipping, &o.Tax, &o.Discount, &o.Total,
			&o.PlacedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		o.PaymentStatus = model.PaymentStatus(paymentStatus)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrderHistory returns the append-only status history of an order, newest first.
func (r *PostgresRepository) GetOrderHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, status, note, changed_by, created_at
		 FROM order_status_history WHERE order_id = $1 ORDER BY created_at DESC, id DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order history: %w", err)
	}
	defer rows.Close()

	var items []model.OrderStatusHistory
	for rows.Next() {
		var h model.OrderStatusHistory
		var status string
		if err := rows.Scan(&h.ID, &h.OrderID, &status, &h.Note, &h.ChangedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order history: %w", err)
		}
		h.Status = model.OrderStatus(status)
		items = append(items, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetOrderStats returns order counts per status and revenue of paid delivered orders.
func (r *PostgresRepository) GetOrderStats(ctx context.Context) (*model.OrderStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	stats := &model.OrderStats{CountByStatus: make(map[model.OrderStatus]int64)}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan order count: %w", err)
		}
		stats.CountByStatus[model.OrderStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders WHERE payment_status = 'PAID' AND status = 'DELIVERED'`,
	).Scan(&stats.Revenue)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}

	return stats, nil
}
