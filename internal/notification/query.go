package notification

import (
	"context"
	"strings"
	"time"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
)

const (
	// DefaultPageSize はページサイズ未指定時の件数。
	DefaultPageSize = 20
	// MaxPageSize はページサイズの上限。
	MaxPageSize = 100
	// retentionMonths は一覧に含める期間（月）。期間外の行は削除しない。
	retentionMonths = 3
)

// normalizePage は0始まりのページ番号とページサイズを補正する。
// 負のページは先頭ページ、0以下のサイズは既定値、上限を超えるサイズは上限に丸める。
func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// windowStart は一覧に含める最も古い作成日時を返す。
func (s *Service) windowStart() time.Time {
	return s.clock().AddDate(0, -retentionMonths, 0)
}

// ListForUser はユーザー宛ての通知を新しい順に返す。
// 保持期間外の配信状態と論理削除された通知は含まない。
func (s *Service) ListForUser(ctx context.Context, tenantID, userID string, page, pageSize int) (Page[NotificationView], error) {
	return guard(ctx, s, "ListForUser", func(ctx context.Context) (Page[NotificationView], error) {
		userID = strings.TrimSpace(userID)
		if tenantID == "" {
			return Page[NotificationView]{}, ErrMissingTenant
		}
		if userID == "" {
			return Page[NotificationView]{}, ErrMissingParameter
		}

		page, pageSize := normalizePage(page, pageSize)
		rows, err := s.queries.ListUserNotifications(ctx, notificationdb.ListUserNotificationsParams{
			UserID:   userID,
			TenantID: tenantID,
			Since:    s.windowStart(),
			Limit:    int64(pageSize),
			Offset:   int64(page) * int64(pageSize),
		})
		if err != nil {
			return Page[NotificationView]{}, storeErr("ユーザー通知一覧の取得", err)
		}

		items := make([]NotificationView, 0, len(rows))
		for _, r := range rows {
			items = append(items, NotificationView{
				ID:        r.ID,
				Title:     r.Title,
				Message:   r.Message,
				Type:      NotificationType(r.Type),
				IsRead:    r.IsRead != 0,
				CreatedAt: r.CreatedAt,
			})
		}
		return Page[NotificationView]{Items: items, Page: page, PageSize: pageSize}, nil
	})
}

// ListForGroup はグループ宛ての通知を新しい順に返す。
// 既読状態はメンバーごとに管理するため、一覧では常に未読として返す。
func (s *Service) ListForGroup(ctx context.Context, tenantID, groupName string, page, pageSize int) (Page[NotificationView], error) {
	return guard(ctx, s, "ListForGroup", func(ctx context.Context) (Page[NotificationView], error) {
		group, err := s.findGroup(ctx, s.queries, tenantID, groupName)
		if err != nil {
			return Page[NotificationView]{}, err
		}

		page, pageSize := normalizePage(page, pageSize)
		rows, err := s.queries.ListGroupNotifications(ctx, notificationdb.ListGroupNotificationsParams{
			GroupID:  group.ID,
			TenantID: tenantID,
			Since:    s.windowStart(),
			Limit:    int64(pageSize),
			Offset:   int64(page) * int64(pageSize),
		})
		if err != nil {
			return Page[NotificationView]{}, storeErr("グループ通知一覧の取得", err)
		}

		items := make([]NotificationView, 0, len(rows))
		for _, r := range rows {
			items = append(items, NotificationView{
				ID:        r.ID,
				Title:     r.Title,
				Message:   r.Message,
				Type:      NotificationType(r.Type),
				IsRead:    false,
				CreatedAt: r.CreatedAt,
			})
		}
		return Page[NotificationView]{Items: items, Page: page, PageSize: pageSize}, nil
	})
}

// ListAllForTenant はテナントの全通知を論理削除済みも含めて新しい順に返す。管理者向け。
// 保持期間による絞り込みは行わない。
func (s *Service) ListAllForTenant(ctx context.Context, tenantID string, page, pageSize int) (Page[AdminNotificationView], error) {
	return guard(ctx, s, "ListAllForTenant", func(ctx context.Context) (Page[AdminNotificationView], error) {
		if tenantID == "" {
			return Page[AdminNotificationView]{}, ErrMissingTenant
		}

		page, pageSize := normalizePage(page, pageSize)
		rows, err := s.queries.ListTenantNotifications(ctx, notificationdb.ListTenantNotificationsParams{
			TenantID: tenantID,
			Limit:    int64(pageSize),
			Offset:   int64(page) * int64(pageSize),
		})
		if err != nil {
			return Page[AdminNotificationView]{}, storeErr("テナント通知一覧の取得", err)
		}

		items := make([]AdminNotificationView, 0, len(rows))
		for _, r := range rows {
			v := AdminNotificationView{
				ID:        r.ID,
				Title:     r.Title,
				Message:   r.Message,
				Type:      NotificationType(r.Type),
				IsDeleted: r.IsDeleted != 0,
				CreatedAt: r.CreatedAt,
			}
			if r.UserID.Valid {
				userID := r.UserID.String
				v.UserID = &userID
			}
			if r.IsRead.Valid {
				isRead := r.IsRead.Int64 != 0
				v.IsUserRead = &isRead
			}
			if r.GroupName.Valid {
				name := r.GroupName.String
				v.GroupName = &name
			}
			items = append(items, v)
		}
		return Page[AdminNotificationView]{Items: items, Page: page, PageSize: pageSize}, nil
	})
}
