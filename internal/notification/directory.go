package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	notificationdb "github.com/nao1215/notihub/internal/notification/db"
	"github.com/nao1215/notihub/pkg/event"
)

// normalizeGroupName は大文字小文字の違いで別グループができないよう名前を正規化する。
func normalizeGroupName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// FindOrCreateGroup はテナント内のグループを名前で取得し、存在しなければ作成する。
// 同じ名前で同時に呼び出された場合も、作成されるグループは1つだけになる。
func (s *Service) FindOrCreateGroup(ctx context.Context, tenantID, name string) (Group, error) {
	return guard(ctx, s, "FindOrCreateGroup", func(ctx context.Context) (Group, error) {
		var (
			group   Group
			created bool
		)
		err := s.withTx(ctx, "FindOrCreateGroup", func(q *notificationdb.Queries) error {
			var err error
			group, created, err = s.findOrCreateGroup(ctx, q, tenantID, name)
			return err
		})
		if err != nil {
			return Group{}, err
		}
		if created {
			s.publishGroupCreated(ctx, group)
		}
		return group, nil
	})
}

// findOrCreateGroup はトランザクション内でグループを取得または作成する。
// 作成した場合は2番目の戻り値がtrueになる。
func (s *Service) findOrCreateGroup(ctx context.Context, q *notificationdb.Queries, tenantID, name string) (Group, bool, error) {
	if tenantID == "" {
		return Group{}, false, ErrMissingTenant
	}
	normalized := normalizeGroupName(name)
	if normalized == "" {
		return Group{}, false, ErrMissingParameter
	}

	lookup := notificationdb.GetGroupByNameParams{TenantID: tenantID, Name: normalized}
	row, err := q.GetGroupByName(ctx, lookup)
	if err == nil {
		return toGroup(row), false, nil
	}
	if !isNoRows(err) {
		return Group{}, false, storeErr("グループの取得", err)
	}

	now := s.clock()
	params := notificationdb.CreateGroupParams{
		ID:        newID(),
		TenantID:  tenantID,
		Name:      normalized,
		CreatedAt: now,
	}
	if err := q.CreateGroup(ctx, params); err != nil {
		if !isUniqueViolation(err) {
			return Group{}, false, storeErr("グループの作成", err)
		}
		// 同時に作成された側を返す
		row, err = q.GetGroupByName(ctx, lookup)
		if err != nil {
			return Group{}, false, storeErr("作成済みグループの取得", err)
		}
		return toGroup(row), false, nil
	}

	s.logger.Info("グループを作成しました",
		zap.String("tenant_id", tenantID),
		zap.String("group_id", params.ID),
		zap.String("name", normalized),
	)
	return Group{
		ID:        params.ID,
		TenantID:  tenantID,
		Name:      normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}, true, nil
}

// FindGroup はテナント内のグループを名前で取得する。存在しない場合は ErrGroupNotFound を返す。
func (s *Service) FindGroup(ctx context.Context, tenantID, name string) (Group, error) {
	return guard(ctx, s, "FindGroup", func(ctx context.Context) (Group, error) {
		return s.findGroup(ctx, s.queries, tenantID, name)
	})
}

func (s *Service) findGroup(ctx context.Context, q *notificationdb.Queries, tenantID, name string) (Group, error) {
	if tenantID == "" {
		return Group{}, ErrMissingTenant
	}
	normalized := normalizeGroupName(name)
	if normalized == "" {
		return Group{}, ErrMissingParameter
	}

	row, err := q.GetGroupByName(ctx, notificationdb.GetGroupByNameParams{TenantID: tenantID, Name: normalized})
	if err != nil {
		if isNoRows(err) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, storeErr("グループの取得", err)
	}
	return toGroup(row), nil
}

// AddMember はユーザーをグループに追加する。グループが無ければ作成する。既に所属していれば何もしない。
func (s *Service) AddMember(ctx context.Context, tenantID, groupName, userID string) (Group, error) {
	return guard(ctx, s, "AddMember", func(ctx context.Context) (Group, error) {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return Group{}, ErrMissingParameter
		}

		var (
			group   Group
			created bool
		)
		err := s.withTx(ctx, "AddMember", func(q *notificationdb.Queries) error {
			var err error
			group, created, err = s.findOrCreateGroup(ctx, q, tenantID, groupName)
			if err != nil {
				return err
			}
			if err := q.AddGroupMember(ctx, notificationdb.AddGroupMemberParams{
				TenantID:  tenantID,
				UserID:    userID,
				GroupID:   group.ID,
				CreatedAt: s.clock(),
			}); err != nil {
				return storeErr("メンバーの追加", err)
			}
			return nil
		})
		if err != nil {
			return Group{}, err
		}

		if created {
			s.publishGroupCreated(ctx, group)
		}
		s.publish(ctx, tenantID, group.ID, event.AggregateTypeGroup, event.TypeGroupMemberAdded, event.GroupMemberData{UserID: userID})
		return group, nil
	})
}

// RemoveMember はユーザーをグループから外す。所属していない場合も成功とする。
func (s *Service) RemoveMember(ctx context.Context, tenantID, groupName, userID string) error {
	_, err := guard(ctx, s, "RemoveMember", func(ctx context.Context) (struct{}, error) {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			return struct{}{}, ErrMissingParameter
		}

		group, err := s.findGroup(ctx, s.queries, tenantID, groupName)
		if err != nil {
			return struct{}{}, err
		}

		removed, err := s.queries.RemoveGroupMember(ctx, notificationdb.RemoveGroupMemberParams{
			GroupID: group.ID,
			UserID:  userID,
		})
		if err != nil {
			return struct{}{}, storeErr("メンバーの削除", err)
		}
		if removed > 0 {
			s.publish(ctx, tenantID, group.ID, event.AggregateTypeGroup, event.TypeGroupMemberRemoved, event.GroupMemberData{UserID: userID})
		}
		return struct{}{}, nil
	})
	return err
}

// IsMember はユーザーがグループに所属しているかを返す。
func (s *Service) IsMember(ctx context.Context, tenantID, groupName, userID string) (bool, error) {
	return guard(ctx, s, "IsMember", func(ctx context.Context) (bool, error) {
		if strings.TrimSpace(userID) == "" {
			return false, ErrMissingParameter
		}
		group, err := s.findGroup(ctx, s.queries, tenantID, groupName)
		if err != nil {
			return false, err
		}
		ok, err := s.queries.IsGroupMember(ctx, notificationdb.IsGroupMemberParams{GroupID: group.ID, UserID: strings.TrimSpace(userID)})
		if err != nil {
			return false, storeErr("メンバーの確認", err)
		}
		return ok, nil
	})
}

func (s *Service) publishGroupCreated(ctx context.Context, g Group) {
	s.publish(ctx, g.TenantID, g.ID, event.AggregateTypeGroup, event.TypeGroupCreated, event.GroupCreatedData{Name: g.Name})
}
