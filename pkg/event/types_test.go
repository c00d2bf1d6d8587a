package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestTypeConstants はイベント種別の文字列値を検証する。
// 値はEvent StoreやKafkaのコンシューマーとの契約になる。
func TestTypeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "NotificationCreated", got: string(TypeNotificationCreated), want: "NotificationCreated"},
		{name: "NotificationDeleted", got: string(TypeNotificationDeleted), want: "NotificationDeleted"},
		{name: "ReadStateChanged", got: string(TypeReadStateChanged), want: "ReadStateChanged"},
		{name: "GroupCreated", got: string(TypeGroupCreated), want: "GroupCreated"},
		{name: "GroupMemberAdded", got: string(TypeGroupMemberAdded), want: "GroupMemberAdded"},
		{name: "GroupMemberRemoved", got: string(TypeGroupMemberRemoved), want: "GroupMemberRemoved"},
		{name: "AggregateTypeNotification", got: string(AggregateTypeNotification), want: "Notification"},
		{name: "AggregateTypeGroup", got: string(AggregateTypeGroup), want: "Group"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// TestEventJSONSerialization はEvent構造体のJSON表現を検証する。
func TestEventJSONSerialization(t *testing.T) {
	t.Parallel()

	t.Run("EventのJSONフィールド名がスネークケースであること", func(t *testing.T) {
		t.Parallel()

		ev := Event{
			ID:            "ev-1",
			TenantID:      "tenant-1",
			AggregateID:   "notif-1",
			AggregateType: AggregateTypeNotification,
			EventType:     TypeNotificationDeleted,
			Data:          json.RawMessage(`{"deleted_by":"admin-1"}`),
			Version:       3,
			CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}

		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("json.Marshal()でエラーが発生: %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("json.Unmarshal()でエラーが発生: %v", err)
		}
		for _, key := range []string{"id", "tenant_id", "aggregate_id", "aggregate_type", "event_type", "data", "version", "created_at"} {
			if _, ok := m[key]; !ok {
				t.Errorf("キー %q が存在しない: %s", key, raw)
			}
		}
		data, ok := m["data"].(map[string]any)
		if !ok || data["deleted_by"] != "admin-1" {
			t.Errorf("data = %v", m["data"])
		}
	})

	t.Run("グループ配信でない場合group_nameが省略されること", func(t *testing.T) {
		t.Parallel()

		raw, err := json.Marshal(NotificationCreatedData{Title: "t", Type: "IN_APP", UserIDs: []string{"1"}, Deliveries: 1})
		if err != nil {
			t.Fatalf("json.Marshal()でエラーが発生: %v", err)
		}

		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("json.Unmarshal()でエラーが発生: %v", err)
		}
		if _, ok := m["group_name"]; ok {
			t.Errorf("group_nameが含まれている: %s", raw)
		}
		if m["deliveries"] != float64(1) {
			t.Errorf("deliveries = %v, want 1", m["deliveries"])
		}
	})
}
