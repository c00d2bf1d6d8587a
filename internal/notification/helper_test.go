package notification

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nao1215/notihub/internal/notification/migrations"
	"github.com/nao1215/notihub/pkg/event"
	"github.com/nao1215/notihub/pkg/migration"
)

// testClock はテストから進められる時計。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AddDate(years, months, days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(years, months, days)
}

// recordingPublisher は送信されたイベントを記録する。
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

// recordingMailer は送信依頼を記録する。errが設定されていれば失敗を返す。
type recordingMailer struct {
	mu   sync.Mutex
	reqs []MailRequest
	err  error
}

func (m *recordingMailer) SendMail(_ context.Context, req MailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return m.err
}

func (m *recordingMailer) requests() []MailRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MailRequest(nil), m.reqs...)
}

// fixture は通知エンジンのテスト環境。
type fixture struct {
	svc    *Service
	db     *sql.DB
	pub    *recordingPublisher
	mailer *recordingMailer
	clock  *testClock
}

// newTestDB はマイグレーション済みのインメモリSQLiteを生成する。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	// インメモリDBは接続ごとに別のデータベースになるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.Run(context.Background(), db, migrations.FS, ".", nil))
	return db
}

// newFixture はテスト用の通知エンジンを構築する。optsは既定の設定より後に適用する。
func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()

	f := &fixture{
		db:     newTestDB(t),
		pub:    &recordingPublisher{},
		mailer: &recordingMailer{},
		clock:  newTestClock(),
	}
	base := []ServiceOption{
		WithPublisher(f.pub),
		WithMailer(f.mailer),
		WithClock(f.clock.Now),
	}
	f.svc = NewService(f.db, append(base, opts...)...)
	return f
}

// count はクエリ結果の件数を返す。
func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(query, args...).Scan(&n))
	return n
}

// create は通知を作成してIDを返す。
func (f *fixture) create(t *testing.T, req CreateRequest) string {
	t.Helper()
	if req.Title == "" {
		req.Title = "タイトル"
	}
	if req.Type == "" {
		req.Type = string(TypeInApp)
	}
	res, err := f.svc.CreateNotification(context.Background(), req)
	require.NoError(t, err)
	return res.NotificationID
}
