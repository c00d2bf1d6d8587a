package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/nao1215/notihub/pkg/httpclient"
)

// Publisher はドメインイベントを外部に送信する。
type Publisher interface {
	// Publish はイベントを1件送信する。
	Publish(ctx context.Context, ev *Event) error
	// Close は送信に使用しているリソースを解放する。
	Close() error
}

// NopPublisher はイベントを破棄するPublisher。EVENT_SINK=none で使用する。
type NopPublisher struct{}

// Publish は何もせずnilを返す。
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// Close は何もせずnilを返す。
func (NopPublisher) Close() error { return nil }

// HTTPPublisher はEvent StoreサービスのAPIにイベントをPOSTする。
type HTTPPublisher struct {
	client *httpclient.Client
}

// NewHTTPPublisher はEvent Store向けのクライアントからHTTPPublisherを生成する。
func NewHTTPPublisher(client *httpclient.Client) *HTTPPublisher {
	return &HTTPPublisher{client: client}
}

// Publish はイベントを POST /api/v1/events で送信する。
func (p *HTTPPublisher) Publish(ctx context.Context, ev *Event) error {
	ctx = httpclient.WithTenantID(ctx, ev.TenantID)
	if err := p.client.PostJSON(ctx, "/api/v1/events", ev, nil); err != nil {
		return fmt.Errorf("Event Storeへのイベント送信に失敗: %w", err)
	}
	return nil
}

// Close は何もせずnilを返す。
func (p *HTTPPublisher) Close() error { return nil }

// messageWriter はkafka.Writerのうち送信に必要な操作。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher はKafkaトピックにイベントを書き込む。
// メッセージキーにAggregateIDを使用し、同じ通知のイベントは同じパーティションに入る。
type KafkaPublisher struct {
	writer    messageWriter
	closeOnce sync.Once
	closeErr  error
}

// NewKafkaPublisher はブローカーとトピックを指定してKafkaPublisherを生成する。
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish はイベントをJSONにシリアライズしてKafkaに書き込む。
func (p *KafkaPublisher) Publish(ctx context.Context, ev *Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
			{Key: "tenant_id", Value: []byte(ev.TenantID)},
		},
		Time: ev.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("Kafkaへのイベント送信に失敗: %w", err)
	}
	return nil
}

// Close はKafkaのWriterを閉じる。複数回呼び出しても安全。
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.writer.Close()
	})
	return p.closeErr
}
