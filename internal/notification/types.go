package notification

import (
	"fmt"
	"time"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
)

// NotificationType は通知の想定チャネルを表すタグ。
// 配信状態レコードはタグに関わらずアプリ内向けのテーブルに作成する。
type NotificationType string

const (
	// TypeEmail はメール通知。
	TypeEmail NotificationType = "EMAIL"
	// TypeSMS はSMS通知。
	TypeSMS NotificationType = "SMS"
	// TypeInApp はアプリ内通知。
	TypeInApp NotificationType = "IN_APP"
	// TypePush はプッシュ通知。
	TypePush NotificationType = "PUSH"
)

// ParseNotificationType は文字列を通知種別に変換する。大文字小文字は区別する。
func ParseNotificationType(s string) (NotificationType, error) {
	switch t := NotificationType(s); t {
	case TypeEmail, TypeSMS, TypeInApp, TypePush:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNotificationType, s)
	}
}

// Notification はテナントが所有する通知。
type Notification struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenant_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsDeleted bool             `json:"is_deleted"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func toNotification(n notificationdb.Notification) Notification {
	return Notification{
		ID:        n.ID,
		TenantID:  n.TenantID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      NotificationType(n.Type),
		IsDeleted: n.IsDeleted != 0,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// Group はテナント内の名前付きグループ。Name は大文字に正規化されている。
type Group struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toGroup(g notificationdb.Group) Group {
	return Group{
		ID:        g.ID,
		TenantID:  g.TenantID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// DeliveryState はユーザー個別の配信状態。
type DeliveryState struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FanoutResult は配信状態の作成結果。
type FanoutResult struct {
	// NotificationID は配信した通知のID。
	NotificationID string
	// GroupID はグループ配信の場合の配信先グループ。
	GroupID string
	// Deliveries は作成した配信状態レコード数。
	Deliveries int
}

// CreateRequest は通知作成の入力。
// UserIDs と GroupName の両方が指定された場合は UserIDs を優先し、GroupName は無視する。
type CreateRequest struct {
	TenantID  string
	Title     string
	Message   string
	Type      string
	UserIDs   []string
	GroupName string
	// Email が指定された場合、作成後にこのアドレスへメール送信を依頼する。
	Email string
}

// CreateResult は通知作成の結果。
type CreateResult struct {
	NotificationID string `json:"notification_id"`
	StatusMessage  string `json:"status_message"`
	Deliveries     int    `json:"deliveries"`
}

// Page はページング済みの一覧。Page は0始まり。
type Page[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NotificationView はユーザーまたはグループ向け一覧の1件。
type NotificationView struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// AdminNotificationView は管理者向け一覧の1件。
// 複数ユーザーに配信した通知でも、最初に作成された配信状態だけを表示する。
type AdminNotificationView struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	IsDeleted  bool             `json:"is_deleted"`
	CreatedAt  time.Time        `json:"created_at"`
	UserID     *string          `json:"user_id"`
	IsUserRead *bool            `json:"is_user_read"`
	GroupName  *string          `json:"group_name"`
}
