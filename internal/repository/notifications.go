package repository

import (
	"context"
	"fmt"

	"github.com/ajjmal/marketplace-system/internal/model"
)

// InsertNotification writes a user notification. Redeliveries of the same
// outbox event collapse on the idempotency key; inserted reports whether a new
// row was actually written.
func (r *PostgresRepository) InsertNotification(ctx context.Context, n *model.Notification, idempotencyKey string) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO user_notifications (user_id, title_ar, title_en, body_ar, body_en, category, link, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		n.UserID, n.TitleAr, n.TitleEn, n.BodyAr, n.BodyEn, n.Category, n.Link, idempotencyKey,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetNotificationsByUser returns a user's notifications, newest first.
func (r *PostgresRepository) GetNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title_ar, title_en, body_ar, body_en, category, link, is_read, created_at
		 FROM user_notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.TitleAr, &n.TitleEn, &n.BodyAr, &n.BodyEn,
			&n.Category, &n.Link, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// MarkNotificationRead flips the read flag. The user id guards against marking
// another user's notification.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, notificationID, userID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE user_notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
