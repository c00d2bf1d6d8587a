package notificationdb

import (
	"context"
	"time"
)

const createNotification = `
INSERT INTO notifications (id, tenant_id, title, message, type, is_deleted, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)
`

// CreateNotificationParams は CreateNotification の引数。
type CreateNotificationParams struct {
	ID        string
	TenantID  string
	Title     string
	Message   string
	Type      string
	CreatedAt time.Time
}

// CreateNotification は通知を1件作成する。作成直後は未削除。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) error {
	ts := formatTime(arg.CreatedAt)
	_, err := q.db.ExecContext(ctx, createNotification,
		arg.ID, arg.TenantID, arg.Title, arg.Message, arg.Type, ts, ts,
	)
	return err
}

const getLiveNotification = `
SELECT id, tenant_id, title, message, type, is_deleted, created_at, updated_at
FROM notifications
WHERE id = ? AND tenant_id = ? AND is_deleted = 0
`

// GetLiveNotificationParams は GetLiveNotification の引数。
type GetLiveNotificationParams struct {
	ID       string
	TenantID string
}

// GetLiveNotification はテナント内の未削除の通知を取得する。
func (q *Queries) GetLiveNotification(ctx context.Context, arg GetLiveNotificationParams) (Notification, error) {
	row := q.db.QueryRowContext(ctx, getLiveNotification, arg.ID, arg.TenantID)
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.TenantID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.IsDeleted,
		timeColumn{&n.CreatedAt},
		timeColumn{&n.UpdatedAt},
	)
	return n, err
}

const softDeleteNotification = `
UPDATE notifications
SET is_deleted = 1, updated_at = ?
WHERE id = ? AND tenant_id = ? AND is_deleted = 0
`

// SoftDeleteNotificationParams は SoftDeleteNotification の引数。
type SoftDeleteNotificationParams struct {
	ID        string
	TenantID  string
	UpdatedAt time.Time
}

// SoftDeleteNotification は通知を論理削除し、更新された行数を返す。
func (q *Queries) SoftDeleteNotification(ctx context.Context, arg SoftDeleteNotificationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteNotification, formatTime(arg.UpdatedAt), arg.ID, arg.TenantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createNotificationEmail = `
INSERT INTO notification_emails (id, notification_id, recipient_email, created_at)
VALUES (?, ?, ?, ?)
`

// CreateNotificationEmailParams は CreateNotificationEmail の引数。
type CreateNotificationEmailParams struct {
	ID             string
	NotificationID string
	RecipientEmail string
	CreatedAt      time.Time
}

// CreateNotificationEmail は通知のメール送信先を記録する。
func (q *Queries) CreateNotificationEmail(ctx context.Context, arg CreateNotificationEmailParams) error {
	_, err := q.db.ExecContext(ctx, createNotificationEmail,
		arg.ID, arg.NotificationID, arg.RecipientEmail, formatTime(arg.CreatedAt),
	)
	return err
}

const listNotificationEmails = `
SELECT id, notification_id, recipient_email, created_at
FROM notification_emails
WHERE notification_id = ?
ORDER BY rowid
`

// ListNotificationEmails は通知に紐づくメール送信先を登録順に返す。
func (q *Queries) ListNotificationEmails(ctx context.Context, notificationID string) ([]NotificationEmail, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationEmails, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []NotificationEmail
	for rows.Next() {
		var e NotificationEmail
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.RecipientEmail, timeColumn{&e.CreatedAt}); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getNotification = `
SELECT id, tenant_id, title, message, type, is_deleted, created_at, updated_at
FROM notifications
WHERE id = ? AND tenant_id = ?
`

// GetNotificationParams は GetNotification の引数。
type GetNotificationParams struct {
	ID       string
	TenantID string
}

// GetNotification はテナント内の通知を論理削除済みも含めて取得する。
func (q *Queries) GetNotification(ctx context.Context, arg GetNotificationParams) (Notification, error) {
	row := q.db.QueryRowContext(ctx, getNotification, arg.ID, arg.TenantID)
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.TenantID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.IsDeleted,
		timeColumn{&n.CreatedAt},
		timeColumn{&n.UpdatedAt},
	)
	return n, err
}
