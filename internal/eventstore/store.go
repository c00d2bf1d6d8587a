package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/notihub/pkg/event"
)

// timeLayout は created_at カラムの保存形式。固定長なので文字列比較が時刻順になる。
const timeLayout = "2006-01-02 15:04:05.000000000"

// ErrInvalidEvent は追記しようとしたイベントの必須項目が欠けていることを表す。
var ErrInvalidEvent = event.ErrInvalid

// Store はSQLite上のイベントテーブルを操作する。
type Store struct {
	db *sql.DB
	// appendMu はバージョン採番から書き込みまでを直列化する。
	appendMu sync.Mutex
	now      func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Append はイベントを追記し、採番後のイベントを返す。
// 送信側のVersionは無視し、AggregateIDごとの最新バージョンの次の値を割り当てる。
// 同じテナントに同じIDのイベントが既にある場合は追記せず既存のイベントとfalseを返す。
func (s *Store) Append(ctx context.Context, ev *event.Event) (*event.Event, bool, error) {
	if err := ev.Validate(); err != nil {
		return nil, false, err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if ev.ID != "" {
		existing, err := scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? AND id = ?`, ev.TenantID, ev.ID))
		switch {
		case err == nil:
			return existing, false, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, fmt.Errorf("イベントの取得に失敗: %w", err)
		}
	}

	var latest int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE tenant_id = ? AND aggregate_id = ?`,
		ev.TenantID, ev.AggregateID,
	).Scan(&latest); err != nil {
		return nil, false, fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}

	stored := *ev
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if len(stored.Data) == 0 {
		stored.Data = json.RawMessage(`{}`)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC()
	stored.Version = latest + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, tenant_id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.TenantID, stored.AggregateID, string(stored.AggregateType), string(stored.EventType),
		string(stored.Data), stored.Version, stored.CreatedAt.Format(timeLayout),
	); err != nil {
		return nil, false, fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return &stored, true, nil
}

// ByAggregate はAggregateIDのイベントをバージョン昇順で返す。
func (s *Store) ByAggregate(ctx context.Context, tenantID, aggregateID string) ([]*event.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? AND aggregate_id = ? ORDER BY version`,
		tenantID, aggregateID)
}

// ByType はイベントタイプに一致するイベントを作成日時の昇順で最大limit件返す。
func (s *Store) ByType(ctx context.Context, tenantID, eventType string, limit int) ([]*event.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? AND event_type = ? ORDER BY created_at, rowid LIMIT ?`,
		tenantID, eventType, limit)
}

// Since は指定日時以降に作成されたイベントを作成日時の昇順で最大limit件返す。
func (s *Store) Since(ctx context.Context, tenantID string, since time.Time, limit int) ([]*event.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? AND created_at >= ? ORDER BY created_at, rowid LIMIT ?`,
		tenantID, since.UTC().Format(timeLayout), limit)
}

// All はテナントのイベントを作成日時の昇順で最大limit件返す。
func (s *Store) All(ctx context.Context, tenantID string, limit int) ([]*event.Event, error) {
	return s.list(ctx,
		`SELECT `+eventColumns+` FROM events WHERE tenant_id = ? ORDER BY created_at, rowid LIMIT ?`,
		tenantID, limit)
}

// LatestVersion はAggregateIDの最新バージョンを返す。イベントが無い場合は0。
func (s *Store) LatestVersion(ctx context.Context, tenantID, aggregateID string) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE tenant_id = ? AND aggregate_id = ?`,
		tenantID, aggregateID,
	).Scan(&v); err != nil {
		return 0, fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}
	return v, nil
}

const eventColumns = `id, tenant_id, aggregate_id, aggregate_type, event_type, data, version, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var (
		ev            event.Event
		aggregateType string
		eventType     string
		data          string
		createdAt     string
	)
	if err := row.Scan(&ev.ID, &ev.TenantID, &ev.AggregateID, &aggregateType, &eventType, &data, &ev.Version, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation(timeLayout, createdAt, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("created_at のパースに失敗: %w", err)
	}
	ev.AggregateType = event.AggregateType(aggregateType)
	ev.EventType = event.Type(eventType)
	ev.Data = json.RawMessage(data)
	ev.CreatedAt = t
	return &ev, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer rows.Close()

	events := make([]*event.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("イベントの読み込みに失敗: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	return events, nil
}
