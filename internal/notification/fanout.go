package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
	"github.com/nao1215/notihub/pkg/event"
	"github.com/nao1215/notihub/pkg/metrics"
)

// 通知作成時のステータスメッセージ。
const (
	statusUserNotificationCreated  = "ユーザー通知を作成しました"
	statusGroupNotificationCreated = "グループ通知を作成しました"
	statusNotificationCreated      = "通知を作成しました"
)

// dedupeRecipients は受信者IDから空白と重複を取り除く。最初に現れた順序を保つ。
func dedupeRecipients(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CreateNotification は通知を作成し、指定された配信先に配信状態を作成する。
// 通知の保存、グループの解決、配信状態の作成は1つのトランザクションで行う。
// UserIDs が指定されていれば GroupName は無視する。どちらも無い場合は通知だけを保存する。
// コミット後にNotificationCreatedイベントを送信し、必要ならメール送信を依頼する。
func (s *Service) CreateNotification(ctx context.Context, req CreateRequest) (CreateResult, error) {
	return guard(ctx, s, "CreateNotification", func(ctx context.Context) (CreateResult, error) {
		recipients := dedupeRecipients(req.UserIDs)
		email := strings.TrimSpace(req.Email)

		var (
			n            Notification
			fanout       FanoutResult
			group        Group
			groupCreated bool
			status       = statusNotificationCreated
		)
		err := s.withTx(ctx, "CreateNotification", func(q *notificationdb.Queries) error {
			var err error
			n, err = s.createNotification(ctx, q, req.TenantID, req.Title, req.Message, req.Type)
			if err != nil {
				return err
			}

			switch {
			case len(recipients) > 0:
				fanout, err = s.notifyUsers(ctx, q, n, recipients)
				status = statusUserNotificationCreated
			case strings.TrimSpace(req.GroupName) != "":
				group, groupCreated, err = s.findOrCreateGroup(ctx, q, n.TenantID, req.GroupName)
				if err != nil {
					return err
				}
				fanout, err = s.notifyGroup(ctx, q, n, group)
				status = statusGroupNotificationCreated
			default:
				fanout = FanoutResult{NotificationID: n.ID}
			}
			if err != nil {
				return err
			}

			if email != "" {
				if err := q.CreateNotificationEmail(ctx, notificationdb.CreateNotificationEmailParams{
					ID:             newID(),
					NotificationID: n.ID,
					RecipientEmail: email,
					CreatedAt:      n.CreatedAt,
				}); err != nil {
					return storeErr("メール送信先の記録", err)
				}
			}
			return nil
		})
		if err != nil {
			return CreateResult{}, err
		}

		metrics.NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()
		s.recordFanout(len(recipients) > 0, fanout)
		s.logger.Info("通知を作成しました",
			zap.String("tenant_id", n.TenantID),
			zap.String("notification_id", n.ID),
			zap.String("type", string(n.Type)),
			zap.Int("deliveries", fanout.Deliveries),
		)

		if groupCreated {
			s.publishGroupCreated(ctx, group)
		}
		data := event.NotificationCreatedData{
			Title:      n.Title,
			Message:    n.Message,
			Type:       string(n.Type),
			UserIDs:    recipients,
			GroupName:  group.Name,
			Deliveries: fanout.Deliveries,
		}
		s.publish(ctx, n.TenantID, n.ID, event.AggregateTypeNotification, event.TypeNotificationCreated, data)
		s.dispatchMail(ctx, n, email)

		return CreateResult{
			NotificationID: n.ID,
			StatusMessage:  status,
			Deliveries:     fanout.Deliveries,
		}, nil
	})
}

// NotifyUsers は既存の通知について受信者ごとに未読の配信状態を作成する。
// 重複したIDは1件にまとめ、すべての行を1つのトランザクションで作成する。
// 空のリストは何もせず成功する。
func (s *Service) NotifyUsers(ctx context.Context, n Notification, userIDs []string) (FanoutResult, error) {
	return guard(ctx, s, "NotifyUsers", func(ctx context.Context) (FanoutResult, error) {
		recipients := dedupeRecipients(userIDs)
		if len(recipients) == 0 {
			return FanoutResult{NotificationID: n.ID}, nil
		}

		var result FanoutResult
		err := s.withTx(ctx, "NotifyUsers", func(q *notificationdb.Queries) error {
			if err := s.requireLive(ctx, q, n); err != nil {
				return err
			}
			var err error
			result, err = s.notifyUsers(ctx, q, n, recipients)
			return err
		})
		if err != nil {
			return FanoutResult{}, err
		}
		s.recordFanout(true, result)
		return result, nil
	})
}

// notifyUsers はトランザクション内でユーザー配信状態を作成する。recipientsは重複排除済みであること。
func (s *Service) notifyUsers(ctx context.Context, q *notificationdb.Queries, n Notification, recipients []string) (FanoutResult, error) {
	now := s.clock()
	for _, userID := range recipients {
		if err := q.CreateUserNotification(ctx, notificationdb.CreateUserNotificationParams{
			ID:             newID(),
			NotificationID: n.ID,
			UserID:         userID,
			CreatedAt:      now,
		}); err != nil {
			return FanoutResult{}, storeErr("ユーザー配信状態の作成", err)
		}
	}
	return FanoutResult{NotificationID: n.ID, Deliveries: len(recipients)}, nil
}

// NotifyGroup は既存の通知をグループに配信した記録を1件作成する。
// メンバーごとの配信状態は既読操作の際に作成する。
func (s *Service) NotifyGroup(ctx context.Context, n Notification, g Group) (FanoutResult, error) {
	return guard(ctx, s, "NotifyGroup", func(ctx context.Context) (FanoutResult, error) {
		if g.ID == "" {
			return FanoutResult{}, ErrMissingParameter
		}
		if g.TenantID != n.TenantID {
			return FanoutResult{}, ErrGroupNotFound
		}

		var result FanoutResult
		err := s.withTx(ctx, "NotifyGroup", func(q *notificationdb.Queries) error {
			if err := s.requireLive(ctx, q, n); err != nil {
				return err
			}
			var err error
			result, err = s.notifyGroup(ctx, q, n, g)
			return err
		})
		if err != nil {
			return FanoutResult{}, err
		}
		s.recordFanout(false, result)
		return result, nil
	})
}

func (s *Service) notifyGroup(ctx context.Context, q *notificationdb.Queries, n Notification, g Group) (FanoutResult, error) {
	if err := q.CreateGroupNotification(ctx, notificationdb.CreateGroupNotificationParams{
		ID:             newID(),
		NotificationID: n.ID,
		GroupID:        g.ID,
		SentAt:         s.clock(),
	}); err != nil {
		return FanoutResult{}, storeErr("グループ配信記録の作成", err)
	}
	return FanoutResult{NotificationID: n.ID, GroupID: g.ID, Deliveries: 1}, nil
}

// requireLive は通知がテナント内に存在し、論理削除されていないことを確認する。
func (s *Service) requireLive(ctx context.Context, q *notificationdb.Queries, n Notification) error {
	if n.TenantID == "" {
		return ErrMissingTenant
	}
	if n.ID == "" {
		return ErrMissingParameter
	}
	if _, err := q.GetLiveNotification(ctx, notificationdb.GetLiveNotificationParams{ID: n.ID, TenantID: n.TenantID}); err != nil {
		if isNoRows(err) {
			return ErrNotificationNotFound
		}
		return storeErr("通知の取得", err)
	}
	return nil
}

func (s *Service) recordFanout(toUsers bool, r FanoutResult) {
	if r.Deliveries == 0 {
		return
	}
	kind := "group"
	if toUsers {
		kind = "user"
	}
	metrics.DeliveryRowsCreatedTotal.WithLabelValues(kind).Add(float64(r.Deliveries))
}
