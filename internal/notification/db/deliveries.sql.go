package notificationdb

import (
	"context"
	"time"
)

const createUserNotification = `
INSERT INTO user_notifications (id, notification_id, user_id, is_read, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?)
`

// CreateUserNotificationParams は CreateUserNotification の引数。
type CreateUserNotificationParams struct {
	ID             string
	NotificationID string
	UserID         string
	CreatedAt      time.Time
}

// CreateUserNotification はユーザーの配信状態を未読で作成する。
func (q *Queries) CreateUserNotification(ctx context.Context, arg CreateUserNotificationParams) error {
	ts := formatTime(arg.CreatedAt)
	_, err := q.db.ExecContext(ctx, createUserNotification, arg.ID, arg.NotificationID, arg.UserID, ts, ts)
	return err
}

const getUserNotification = `
SELECT id, notification_id, user_id, is_read, created_at, updated_at
FROM user_notifications
WHERE notification_id = ? AND user_id = ?
`

// GetUserNotificationParams は GetUserNotification の引数。
type GetUserNotificationParams struct {
	NotificationID string
	UserID         string
}

// GetUserNotification は (notification_id, user_id) の配信状態を取得する。
func (q *Queries) GetUserNotification(ctx context.Context, arg GetUserNotificationParams) (UserNotification, error) {
	row := q.db.QueryRowContext(ctx, getUserNotification, arg.NotificationID, arg.UserID)
	var u UserNotification
	err := row.Scan(
		&u.ID,
		&u.NotificationID,
		&u.UserID,
		&u.IsRead,
		timeColumn{&u.CreatedAt},
		timeColumn{&u.UpdatedAt},
	)
	return u, err
}

const countUserNotifications = `
SELECT COUNT(*) FROM user_notifications WHERE notification_id = ?
`

// CountUserNotifications は通知に対するユーザー配信状態の件数を返す。
func (q *Queries) CountUserNotifications(ctx context.Context, notificationID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserNotifications, notificationID).Scan(&n)
	return n, err
}

const setUserNotificationRead = `
UPDATE user_notifications
SET is_read = ?, updated_at = ?
WHERE id = ?
`

// SetUserNotificationReadParams は SetUserNotificationRead の引数。
type SetUserNotificationReadParams struct {
	ID        string
	IsRead    bool
	UpdatedAt time.Time
}

// SetUserNotificationRead は配信状態の既読フラグを設定する。
func (q *Queries) SetUserNotificationRead(ctx context.Context, arg SetUserNotificationReadParams) error {
	_, err := q.db.ExecContext(ctx, setUserNotificationRead, boolToInt(arg.IsRead), formatTime(arg.UpdatedAt), arg.ID)
	return err
}

const createGroupNotification = `
INSERT INTO group_notifications (id, notification_id, group_id, sent_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateGroupNotificationParams は CreateGroupNotification の引数。
type CreateGroupNotificationParams struct {
	ID             string
	NotificationID string
	GroupID        string
	SentAt         time.Time
}

// CreateGroupNotification は通知をグループに配信した記録を作成する。
func (q *Queries) CreateGroupNotification(ctx context.Context, arg CreateGroupNotificationParams) error {
	ts := formatTime(arg.SentAt)
	_, err := q.db.ExecContext(ctx, createGroupNotification, arg.ID, arg.NotificationID, arg.GroupID, ts, ts, ts)
	return err
}

const getGroupNotification = `
SELECT id, notification_id, group_id, sent_at, created_at, updated_at
FROM group_notifications
WHERE notification_id = ? AND group_id = ?
`

// GetGroupNotificationParams は GetGroupNotification の引数。
type GetGroupNotificationParams struct {
	NotificationID string
	GroupID        string
}

// GetGroupNotification は (notification_id, group_id) の配信記録を取得する。
func (q *Queries) GetGroupNotification(ctx context.Context, arg GetGroupNotificationParams) (GroupNotification, error) {
	row := q.db.QueryRowContext(ctx, getGroupNotification, arg.NotificationID, arg.GroupID)
	var g GroupNotification
	err := row.Scan(
		&g.ID,
		&g.NotificationID,
		&g.GroupID,
		timeColumn{&g.SentAt},
		timeColumn{&g.CreatedAt},
		timeColumn{&g.UpdatedAt},
	)
	return g, err
}

const createUserGroupNotification = `
INSERT INTO user_group_notifications (id, tenant_id, user_id, group_id, notification_id, is_read, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?)
`

// CreateUserGroupNotificationParams は CreateUserGroupNotification の引数。
type CreateUserGroupNotificationParams struct {
	ID             string
	TenantID       string
	UserID         string
	GroupID        string
	NotificationID string
	CreatedAt      time.Time
}

// CreateUserGroupNotification はグループ経由の配信についてメンバーの配信状態を未読で作成する。
func (q *Queries) CreateUserGroupNotification(ctx context.Context, arg CreateUserGroupNotificationParams) error {
	ts := formatTime(arg.CreatedAt)
	_, err := q.db.ExecContext(ctx, createUserGroupNotification,
		arg.ID, arg.TenantID, arg.UserID, arg.GroupID, arg.NotificationID, ts, ts,
	)
	return err
}

const getUserGroupNotification = `
SELECT id, tenant_id, user_id, group_id, notification_id, is_read, created_at, updated_at
FROM user_group_notifications
WHERE notification_id = ? AND user_id = ? AND group_id = ?
`

// GetUserGroupNotificationParams は GetUserGroupNotification の引数。
type GetUserGroupNotificationParams struct {
	NotificationID string
	UserID         string
	GroupID        string
}

// GetUserGroupNotification は (notification_id, user_id, group_id) の配信状態を取得する。
func (q *Queries) GetUserGroupNotification(ctx context.Context, arg GetUserGroupNotificationParams) (UserGroupNotification, error) {
	row := q.db.QueryRowContext(ctx, getUserGroupNotification, arg.NotificationID, arg.UserID, arg.GroupID)
	var u UserGroupNotification
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.UserID,
		&u.GroupID,
		&u.NotificationID,
		&u.IsRead,
		timeColumn{&u.CreatedAt},
		timeColumn{&u.UpdatedAt},
	)
	return u, err
}

const countUserGroupNotifications = `
SELECT COUNT(*) FROM user_group_notifications WHERE notification_id = ? AND group_id = ?
`

// CountUserGroupNotificationsParams は CountUserGroupNotifications の引数。
type CountUserGroupNotificationsParams struct {
	NotificationID string
	GroupID        string
}

// CountUserGroupNotifications はグループ経由の配信についてメンバー別の配信状態の件数を返す。
func (q *Queries) CountUserGroupNotifications(ctx context.Context, arg CountUserGroupNotificationsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserGroupNotifications, arg.NotificationID, arg.GroupID).Scan(&n)
	return n, err
}

const setUserGroupNotificationRead = `
UPDATE user_group_notifications
SET is_read = ?, updated_at = ?
WHERE id = ?
`

// SetUserGroupNotificationReadParams は SetUserGroupNotificationRead の引数。
type SetUserGroupNotificationReadParams struct {
	ID        string
	IsRead    bool
	UpdatedAt time.Time
}

// SetUserGroupNotificationRead はメンバー別の配信状態の既読フラグを設定する。
func (q *Queries) SetUserGroupNotificationRead(ctx context.Context, arg SetUserGroupNotificationReadParams) error {
	_, err := q.db.ExecContext(ctx, setUserGroupNotificationRead, boolToInt(arg.IsRead), formatTime(arg.UpdatedAt), arg.ID)
	return err
}
