package notificationdb

import (
	"database/sql"
	"time"
)

// Notification は notifications テーブルの行。
type Notification struct {
	ID        string
	TenantID  string
	Title     string
	Message   string
	Type      string
	IsDeleted int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group は tenant_groups テーブルの行。
type Group struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserNotification は user_notifications テーブルの行。
type UserNotification struct {
	ID             string
	NotificationID string
	UserID         string
	IsRead         int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GroupNotification は group_notifications テーブルの行。
type GroupNotification struct {
	ID             string
	NotificationID string
	GroupID        string
	SentAt         time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserGroupNotification は user_group_notifications テーブルの行。
type UserGroupNotification struct {
	ID             string
	TenantID       string
	UserID         string
	GroupID        string
	NotificationID string
	IsRead         int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotificationEmail は notification_emails テーブルの行。
type NotificationEmail struct {
	ID             string
	NotificationID string
	RecipientEmail string
	CreatedAt      time.Time
}

// ListUserNotificationsRow はユーザー向け一覧の1行。
type ListUserNotificationsRow struct {
	ID        string
	Title     string
	Message   string
	Type      string
	IsRead    int64
	CreatedAt time.Time
}

// ListGroupNotificationsRow はグループ向け一覧の1行。
type ListGroupNotificationsRow struct {
	ID        string
	Title     string
	Message   string
	Type      string
	SentAt    time.Time
	CreatedAt time.Time
}

// ListTenantNotificationsRow は管理者向け一覧の1行。
type ListTenantNotificationsRow struct {
	ID        string
	Title     string
	Message   string
	Type      string
	IsDeleted int64
	CreatedAt time.Time
	UserID    sql.NullString
	IsRead    sql.NullInt64
	GroupName sql.NullString
}
