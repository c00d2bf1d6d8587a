// Package metrics はPrometheusのメトリクス定義を提供する。
//
// HTTPリクエストの計測に加え、通知の作成数、配信状態レコードの作成数、
// 既読状態の変更数、メール送信結果、イベントストアへの追記数を記録する。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal はHTTPリクエスト数。
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "path", "method", "status"},
	)

	// HTTPRequestDuration はHTTPリクエストの処理時間。
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notihub_http_request_duration_seconds",
			Help:    "Histogram of HTTP response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "path", "method"},
	)

	// NotificationsCreatedTotal はチャネル種別ごとの通知作成数。
	NotificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_notifications_created_total",
			Help: "Number of notifications created, by channel type",
		},
		[]string{"type"},
	)

	// DeliveryRowsCreatedTotal は配信状態レコードの作成数。kindは user / group / user_group。
	DeliveryRowsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_delivery_rows_created_total",
			Help: "Number of delivery-state rows materialized",
		},
		[]string{"kind"},
	)

	// ReadStateChangesTotal は既読・未読の設定回数。
	ReadStateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_read_state_changes_total",
			Help: "Number of read/unread toggles",
		},
		[]string{"path", "state"},
	)

	// MailsTotal はメール送信の結果ごとの件数。
	MailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_mails_total",
			Help: "Outbound mail requests, by provider and result",
		},
		[]string{"provider", "result"},
	)

	// EventsAppendedTotal はイベントストアに追記されたイベント数。
	EventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notihub_events_appended_total",
			Help: "Number of domain events appended to the event store",
		},
		[]string{"aggregate_type", "event_type"},
	)
)

var registerOnce sync.Once

// Init はメトリクスをデフォルトレジストリに登録する。複数回呼び出しても安全。
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			NotificationsCreatedTotal,
			DeliveryRowsCreatedTotal,
			ReadStateChangesTotal,
			MailsTotal,
			EventsAppendedTotal,
		)
	})
}
