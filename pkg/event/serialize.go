package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid はイベントの必須項目が欠けているか、Dataが不正であることを表す。
var ErrInvalid = errors.New("イベントが不正です")

// New は新しいイベントを生成する。
// dataはJSONにシリアライズされる。createdAtは呼び出し元の時計の値をUTCで保持する。
// Versionはイベントストアが採番するため0のままにする。
func New(tenantID, aggregateID string, aggregateType AggregateType, eventType Type, data any, createdAt time.Time) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}

	ev := &Event{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		CreatedAt:     createdAt.UTC(),
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Validate はテナント、AggregateID、AggregateType、EventTypeが設定されていること、
// DataがあればJSONであることを検証する。
func (e *Event) Validate() error {
	var missing []string
	if e.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if e.AggregateID == "" {
		missing = append(missing, "aggregate_id")
	}
	if e.AggregateType == "" {
		missing = append(missing, "aggregate_type")
	}
	if e.EventType == "" {
		missing = append(missing, "event_type")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s は必須です", ErrInvalid, strings.Join(missing, ", "))
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return fmt.Errorf("%w: data がJSONではありません", ErrInvalid)
	}
	return nil
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
