package notification

import (
	"context"
	"strings"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
	"github.com/nao1215/notihub/pkg/event"
	"github.com/nao1215/notihub/pkg/metrics"
)

func readStateLabel(isRead bool) string {
	if isRead {
		return "read"
	}
	return "unread"
}

// SetUserRead はユーザー個別の配信状態の既読フラグを設定する。
// 同じ値を繰り返し設定しても成功し、行は増えない。
func (s *Service) SetUserRead(ctx context.Context, tenantID, userID, notificationID string, isRead bool) error {
	_, err := guard(ctx, s, "SetUserRead", func(ctx context.Context) (struct{}, error) {
		userID = strings.TrimSpace(userID)
		if tenantID == "" {
			return struct{}{}, ErrMissingTenant
		}
		if userID == "" || notificationID == "" {
			return struct{}{}, ErrMissingParameter
		}

		changed := false
		err := s.withTx(ctx, "SetUserRead", func(q *notificationdb.Queries) error {
			if err := s.requireLive(ctx, q, Notification{ID: notificationID, TenantID: tenantID}); err != nil {
				return err
			}

			row, err := q.GetUserNotification(ctx, notificationdb.GetUserNotificationParams{
				NotificationID: notificationID,
				UserID:         userID,
			})
			if err != nil {
				if isNoRows(err) {
					return ErrDeliveryRecordNotFound
				}
				return storeErr("ユーザー配信状態の取得", err)
			}

			if (row.IsRead != 0) == isRead {
				return nil
			}
			if err := q.SetUserNotificationRead(ctx, notificationdb.SetUserNotificationReadParams{
				ID:        row.ID,
				IsRead:    isRead,
				UpdatedAt: s.clock(),
			}); err != nil {
				return storeErr("既読状態の更新", err)
			}
			changed = true
			return nil
		})
		if err != nil {
			return struct{}{}, err
		}

		if changed {
			metrics.ReadStateChangesTotal.WithLabelValues("user", readStateLabel(isRead)).Inc()
			s.publish(ctx, tenantID, notificationID, event.AggregateTypeNotification, event.TypeReadStateChanged,
				event.ReadStateChangedData{UserID: userID, IsRead: isRead})
		}
		return struct{}{}, nil
	})
	return err
}

// SetGroupMemberRead はグループ経由で配信された通知について、メンバーの既読フラグを設定する。
// メンバー別の配信状態がまだ無い場合、通知がグループに配信済みでユーザーがメンバーであれば
// 同じトランザクション内で作成してから設定する。
func (s *Service) SetGroupMemberRead(ctx context.Context, tenantID, userID, groupName, notificationID string, isRead bool) error {
	_, err := guard(ctx, s, "SetGroupMemberRead", func(ctx context.Context) (struct{}, error) {
		userID = strings.TrimSpace(userID)
		if tenantID == "" {
			return struct{}{}, ErrMissingTenant
		}
		if userID == "" || notificationID == "" || normalizeGroupName(groupName) == "" {
			return struct{}{}, ErrMissingParameter
		}

		changed := false
		err := s.withTx(ctx, "SetGroupMemberRead", func(q *notificationdb.Queries) error {
			if err := s.requireLive(ctx, q, Notification{ID: notificationID, TenantID: tenantID}); err != nil {
				return err
			}
			group, err := s.findGroup(ctx, q, tenantID, groupName)
			if err != nil {
				return err
			}

			row, err := s.memberDelivery(ctx, q, tenantID, userID, group, notificationID)
			if err != nil {
				return err
			}

			if (row.IsRead != 0) == isRead {
				return nil
			}
			if err := q.SetUserGroupNotificationRead(ctx, notificationdb.SetUserGroupNotificationReadParams{
				ID:        row.ID,
				IsRead:    isRead,
				UpdatedAt: s.clock(),
			}); err != nil {
				return storeErr("既読状態の更新", err)
			}
			changed = true
			return nil
		})
		if err != nil {
			return struct{}{}, err
		}

		if changed {
			metrics.ReadStateChangesTotal.WithLabelValues("group", readStateLabel(isRead)).Inc()
			s.publish(ctx, tenantID, notificationID, event.AggregateTypeNotification, event.TypeReadStateChanged,
				event.ReadStateChangedData{UserID: userID, GroupName: normalizeGroupName(groupName), IsRead: isRead})
		}
		return struct{}{}, nil
	})
	return err
}

// memberDelivery はメンバー別の配信状態を取得し、無ければ作成する。
func (s *Service) memberDelivery(ctx context.Context, q *notificationdb.Queries, tenantID, userID string, group Group, notificationID string) (notificationdb.UserGroupNotification, error) {
	key := notificationdb.GetUserGroupNotificationParams{
		NotificationID: notificationID,
		UserID:         userID,
		GroupID:        group.ID,
	}
	row, err := q.GetUserGroupNotification(ctx, key)
	if err == nil {
		return row, nil
	}
	if !isNoRows(err) {
		return notificationdb.UserGroupNotification{}, storeErr("メンバー配信状態の取得", err)
	}

	if _, err := q.GetGroupNotification(ctx, notificationdb.GetGroupNotificationParams{
		NotificationID: notificationID,
		GroupID:        group.ID,
	}); err != nil {
		if isNoRows(err) {
			return notificationdb.UserGroupNotification{}, ErrDeliveryRecordNotFound
		}
		return notificationdb.UserGroupNotification{}, storeErr("グループ配信記録の取得", err)
	}

	member, err := q.IsGroupMember(ctx, notificationdb.IsGroupMemberParams{GroupID: group.ID, UserID: userID})
	if err != nil {
		return notificationdb.UserGroupNotification{}, storeErr("メンバーの確認", err)
	}
	if !member {
		return notificationdb.UserGroupNotification{}, ErrDeliveryRecordNotFound
	}

	now := s.clock()
	row = notificationdb.UserGroupNotification{
		ID:             newID(),
		TenantID:       tenantID,
		UserID:         userID,
		GroupID:        group.ID,
		NotificationID: notificationID,
		IsRead:         0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := q.CreateUserGroupNotification(ctx, notificationdb.CreateUserGroupNotificationParams{
		ID:             row.ID,
		TenantID:       row.TenantID,
		UserID:         row.UserID,
		GroupID:        row.GroupID,
		NotificationID: row.NotificationID,
		CreatedAt:      now,
	}); err != nil {
		return notificationdb.UserGroupNotification{}, storeErr("メンバー配信状態の作成", err)
	}
	metrics.DeliveryRowsCreatedTotal.WithLabelValues("user_group").Inc()
	return row, nil
}

// GetUserDelivery はユーザー個別の配信状態を取得する。
// 保持期間を過ぎた配信状態や論理削除された通知の配信状態も取得できる。
func (s *Service) GetUserDelivery(ctx context.Context, tenantID, userID, notificationID string) (DeliveryState, error) {
	return guard(ctx, s, "GetUserDelivery", func(ctx context.Context) (DeliveryState, error) {
		userID = strings.TrimSpace(userID)
		if tenantID == "" {
			return DeliveryState{}, ErrMissingTenant
		}
		if userID == "" || notificationID == "" {
			return DeliveryState{}, ErrMissingParameter
		}

		if _, err := s.queries.GetNotification(ctx, notificationdb.GetNotificationParams{ID: notificationID, TenantID: tenantID}); err != nil {
			if isNoRows(err) {
				return DeliveryState{}, ErrNotificationNotFound
			}
			return DeliveryState{}, storeErr("通知の取得", err)
		}

		row, err := s.queries.GetUserNotification(ctx, notificationdb.GetUserNotificationParams{
			NotificationID: notificationID,
			UserID:         userID,
		})
		if err != nil {
			if isNoRows(err) {
				return DeliveryState{}, ErrDeliveryRecordNotFound
			}
			return DeliveryState{}, storeErr("ユーザー配信状態の取得", err)
		}
		return DeliveryState{
			ID:             row.ID,
			NotificationID: row.NotificationID,
			UserID:         row.UserID,
			IsRead:         row.IsRead != 0,
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
		}, nil
	})
}
