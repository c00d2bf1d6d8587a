package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
	"github.com/nao1215/notihub/pkg/event"
)

// Create は配信先を持たない通知を1件作成する。
// テナントID、通知種別、タイトルの順に検証する。
func (s *Service) Create(ctx context.Context, tenantID, title, message, notificationType string) (Notification, error) {
	return guard(ctx, s, "Create", func(ctx context.Context) (Notification, error) {
		var n Notification
		err := s.withTx(ctx, "Create", func(q *notificationdb.Queries) error {
			var err error
			n, err = s.createNotification(ctx, q, tenantID, title, message, notificationType)
			return err
		})
		if err != nil {
			return Notification{}, err
		}
		return n, nil
	})
}

// createNotification はトランザクション内で通知を検証して保存する。
func (s *Service) createNotification(ctx context.Context, q *notificationdb.Queries, tenantID, title, message, notificationType string) (Notification, error) {
	if tenantID == "" {
		return Notification{}, ErrMissingTenant
	}
	typ, err := ParseNotificationType(notificationType)
	if err != nil {
		return Notification{}, err
	}
	if strings.TrimSpace(title) == "" {
		return Notification{}, ErrMissingParameter
	}

	now := s.clock()
	n := Notification{
		ID:        newID(),
		TenantID:  tenantID,
		Title:     title,
		Message:   message,
		Type:      typ,
		IsDeleted: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		ID:        n.ID,
		TenantID:  n.TenantID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		CreatedAt: now,
	}); err != nil {
		return Notification{}, storeErr("通知の作成", err)
	}
	return n, nil
}

// Get はテナント内の通知を論理削除済みも含めて取得する。
func (s *Service) Get(ctx context.Context, tenantID, notificationID string) (Notification, error) {
	return guard(ctx, s, "Get", func(ctx context.Context) (Notification, error) {
		if tenantID == "" {
			return Notification{}, ErrMissingTenant
		}
		if notificationID == "" {
			return Notification{}, ErrMissingParameter
		}
		row, err := s.queries.GetNotification(ctx, notificationdb.GetNotificationParams{ID: notificationID, TenantID: tenantID})
		if err != nil {
			if isNoRows(err) {
				return Notification{}, ErrNotificationNotFound
			}
			return Notification{}, storeErr("通知の取得", err)
		}
		return toNotification(row), nil
	})
}

// SoftDelete は通知を論理削除する。配信状態レコードは監査用に残す。
// 他テナントの通知や削除済みの通知を指定した場合は ErrNotificationNotFound を返す。
func (s *Service) SoftDelete(ctx context.Context, tenantID, notificationID, actorID string) error {
	_, err := guard(ctx, s, "SoftDelete", func(ctx context.Context) (struct{}, error) {
		if tenantID == "" {
			return struct{}{}, ErrMissingTenant
		}
		if notificationID == "" {
			return struct{}{}, ErrMissingParameter
		}

		affected, err := s.queries.SoftDeleteNotification(ctx, notificationdb.SoftDeleteNotificationParams{
			ID:        notificationID,
			TenantID:  tenantID,
			UpdatedAt: s.clock(),
		})
		if err != nil {
			return struct{}{}, storeErr("通知の削除", err)
		}
		if affected == 0 {
			return struct{}{}, ErrNotificationNotFound
		}

		s.logger.Info("通知を論理削除しました",
			zap.String("tenant_id", tenantID),
			zap.String("notification_id", notificationID),
			zap.String("actor_id", actorID),
		)
		s.publish(ctx, tenantID, notificationID, event.AggregateTypeNotification, event.TypeNotificationDeleted,
			event.NotificationDeletedData{DeletedBy: actorID})
		return struct{}{}, nil
	})
	return err
}
