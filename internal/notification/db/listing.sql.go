package notificationdb

import (
	"context"
	"time"
)

// 同時刻に作成された行は rowid の降順（後に挿入された行が先）で並べる。

const listUserNotifications = `
SELECT n.id, n.title, n.message, n.type, un.is_read, n.created_at
FROM user_notifications un
JOIN notifications n ON n.id = un.notification_id
WHERE un.user_id = ?
  AND n.tenant_id = ?
  AND n.is_deleted = 0
  AND un.created_at >= ?
ORDER BY un.created_at DESC, un.rowid DESC
LIMIT ? OFFSET ?
`

// ListUserNotificationsParams は ListUserNotifications の引数。
type ListUserNotificationsParams struct {
	UserID   string
	TenantID string
	Since    time.Time
	Limit    int64
	Offset   int64
}

// ListUserNotifications はユーザー宛ての未削除の通知を新しい順に返す。
// Since より前に作成された配信状態は含まない。
func (q *Queries) ListUserNotifications(ctx context.Context, arg ListUserNotificationsParams) ([]ListUserNotificationsRow, error) {
	rows, err := q.db.QueryContext(ctx, listUserNotifications,
		arg.UserID, arg.TenantID, formatTime(arg.Since), arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListUserNotificationsRow
	for rows.Next() {
		var i ListUserNotificationsRow
		if err := rows.Scan(&i.ID, &i.Title, &i.Message, &i.Type, &i.IsRead, timeColumn{&i.CreatedAt}); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listGroupNotifications = `
SELECT n.id, n.title, n.message, n.type, gn.sent_at, n.created_at
FROM group_notifications gn
JOIN notifications n ON n.id = gn.notification_id
WHERE gn.group_id = ?
  AND n.tenant_id = ?
  AND n.is_deleted = 0
  AND gn.created_at >= ?
ORDER BY gn.created_at DESC, gn.rowid DESC
LIMIT ? OFFSET ?
`

// ListGroupNotificationsParams は ListGroupNotifications の引数。
type ListGroupNotificationsParams struct {
	GroupID  string
	TenantID string
	Since    time.Time
	Limit    int64
	Offset   int64
}

// ListGroupNotifications はグループ宛ての未削除の通知を新しい順に返す。
func (q *Queries) ListGroupNotifications(ctx context.Context, arg ListGroupNotificationsParams) ([]ListGroupNotificationsRow, error) {
	rows, err := q.db.QueryContext(ctx, listGroupNotifications,
		arg.GroupID, arg.TenantID, formatTime(arg.Since), arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListGroupNotificationsRow
	for rows.Next() {
		var i ListGroupNotificationsRow
		if err := rows.Scan(&i.ID, &i.Title, &i.Message, &i.Type, timeColumn{&i.SentAt}, timeColumn{&i.CreatedAt}); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// listTenantNotifications は配信状態を最初に作成された1件だけ結合する。
const listTenantNotifications = `
SELECT
    n.id, n.title, n.message, n.type, n.is_deleted, n.created_at,
    (SELECT un.user_id FROM user_notifications un
        WHERE un.notification_id = n.id ORDER BY un.rowid LIMIT 1) AS user_id,
    (SELECT un.is_read FROM user_notifications un
        WHERE un.notification_id = n.id ORDER BY un.rowid LIMIT 1) AS is_read,
    (SELECT g.name FROM group_notifications gn
        JOIN tenant_groups g ON g.id = gn.group_id
        WHERE gn.notification_id = n.id ORDER BY gn.rowid LIMIT 1) AS group_name
FROM notifications n
WHERE n.tenant_id = ?
ORDER BY n.created_at DESC, n.rowid DESC
LIMIT ? OFFSET ?
`

// ListTenantNotificationsParams は ListTenantNotifications の引数。
type ListTenantNotificationsParams struct {
	TenantID string
	Limit    int64
	Offset   int64
}

// ListTenantNotifications はテナントの全通知を論理削除済みも含めて新しい順に返す。
func (q *Queries) ListTenantNotifications(ctx context.Context, arg ListTenantNotificationsParams) ([]ListTenantNotificationsRow, error) {
	rows, err := q.db.QueryContext(ctx, listTenantNotifications, arg.TenantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListTenantNotificationsRow
	for rows.Next() {
		var i ListTenantNotificationsRow
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Message,
			&i.Type,
			&i.IsDeleted,
			timeColumn{&i.CreatedAt},
			&i.UserID,
			&i.IsRead,
			&i.GroupName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
