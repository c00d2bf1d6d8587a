package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
	"github.com/nao1215/notihub/pkg/event"
)

// defaultStoreTimeout は1回の公開操作に許すストレージ処理時間。
const defaultStoreTimeout = 5 * time.Second

// Service は通知の作成、配信状態の作成、既読管理、一覧取得を行う通知エンジン。
// すべての公開メソッドはテナントIDでスコープされる。
type Service struct {
	db           *sql.DB
	queries      *notificationdb.Queries
	publisher    event.Publisher
	mailer       Mailer
	logger       *zap.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

// ServiceOption はServiceの設定を変更する関数。
type ServiceOption func(*Service)

// WithPublisher はドメインイベントの送信先を設定する。
func WithPublisher(p event.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithMailer はメール送信の依頼先を設定する。
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock は現在時刻の取得関数を設定する。
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithStoreTimeout は1回の公開操作のタイムアウトを設定する。
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// NewService はマイグレーション済みのデータベースを使う通知エンジンを生成する。
func NewService(db *sql.DB, opts ...ServiceOption) *Service {
	s := &Service{
		db:           db,
		queries:      notificationdb.New(db),
		publisher:    event.NopPublisher{},
		mailer:       nopMailer{},
		logger:       zap.NewNop(),
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock はUTCの現在時刻を返す。
func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// guard は公開操作の共通処理。タイムアウトを設定し、パニックを回復し、
// 戻り値のエラーを分類済みのエラーに変換する。
func guard[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (result T, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("通知エンジンでパニックが発生しました",
				zap.String("op", op),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrInternalFailure, op, r)
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		var zero T
		return zero, classify(op, err)
	}
	return result, nil
}

// withTx はfnを1つのトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
// fn内では引数のQueriesだけを使うこと。
func (s *Service) withTx(ctx context.Context, op string, fn func(q *notificationdb.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// publish はドメインイベントを送信する。失敗してもログに記録するだけで呼び出し元には返さない。
func (s *Service) publish(ctx context.Context, tenantID, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) {
	ev, err := event.New(tenantID, aggregateID, aggregateType, eventType, data, s.clock())
	if err != nil {
		s.logger.Warn("イベントの生成に失敗しました", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("イベントの送信に失敗しました",
			zap.String("event_type", string(eventType)),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err),
		)
	}
}

// newID は新しいエンティティIDを生成する。
func newID() string {
	return uuid.New().String()
}

// isUniqueViolation はSQLiteのUNIQUE制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// 拡張エラーコードが無効な接続では基本コードとメッセージで判定する
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}

// isNoRows は該当行が無いことを表すエラーかどうかを返す。
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
