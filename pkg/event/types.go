package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeNotification は通知エンティティを表す。
	AggregateTypeNotification AggregateType = "Notification"
	// AggregateTypeGroup はグループエンティティを表す。
	AggregateTypeGroup AggregateType = "Group"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationCreated は通知が作成され、配信状態レコードが作られたことを表す。
	TypeNotificationCreated Type = "NotificationCreated"
	// TypeNotificationDeleted は通知が論理削除されたことを表す。
	TypeNotificationDeleted Type = "NotificationDeleted"
	// TypeReadStateChanged は受信者の既読状態が変更されたことを表す。
	TypeReadStateChanged Type = "ReadStateChanged"

	// TypeGroupCreated はグループが初めて作成されたことを表す。
	TypeGroupCreated Type = "GroupCreated"
	// TypeGroupMemberAdded はグループにメンバーが追加されたことを表す。
	TypeGroupMemberAdded Type = "GroupMemberAdded"
	// TypeGroupMemberRemoved はグループからメンバーが削除されたことを表す。
	TypeGroupMemberRemoved Type = "GroupMemberRemoved"
)

// Event は通知サービスで発生したドメインイベントを表す。
// Event StoreまたはKafkaトピックに送信される。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// TenantID はイベントが属するテナント。
	TenantID string `json:"tenant_id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreatedData はNotificationCreatedイベントのデータ。
type NotificationCreatedData struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知の本文。
	Message string `json:"message"`
	// Type は通知のチャネル種別（EMAIL / SMS / IN_APP / PUSH）。
	Type string `json:"type"`
	// UserIDs は個別配信先のユーザーID。グループ配信の場合は空。
	UserIDs []string `json:"user_ids,omitempty"`
	// GroupName はグループ配信先の正規化済みグループ名。
	GroupName string `json:"group_name,omitempty"`
	// Deliveries は作成された配信状態レコード数。
	Deliveries int `json:"deliveries"`
}

// NotificationDeletedData はNotificationDeletedイベントのデータ。
type NotificationDeletedData struct {
	// DeletedBy は削除を実行したユーザーのID。
	DeletedBy string `json:"deleted_by"`
}

// ReadStateChangedData はReadStateChangedイベントのデータ。
type ReadStateChangedData struct {
	// UserID は既読状態を変更した受信者。
	UserID string `json:"user_id"`
	// GroupName はグループ経由の配信の場合のグループ名。
	GroupName string `json:"group_name,omitempty"`
	// IsRead は変更後の既読状態。
	IsRead bool `json:"is_read"`
}

// GroupCreatedData はGroupCreatedイベントのデータ。
type GroupCreatedData struct {
	// Name は正規化済みのグループ名。
	Name string `json:"name"`
}

// GroupMemberData はGroupMemberAdded / GroupMemberRemovedイベントのデータ。
type GroupMemberData struct {
	// UserID は追加または削除されたユーザーのID。
	UserID string `json:"user_id"`
}
