package notificationdb

import (
	"context"
	"time"
)

const getGroupByName = `
SELECT id, tenant_id, name, created_at, updated_at
FROM tenant_groups
WHERE tenant_id = ? AND name = ?
`

// GetGroupByNameParams は GetGroupByName の引数。
type GetGroupByNameParams struct {
	TenantID string
	Name     string
}

// GetGroupByName はテナント内のグループを正規化済みの名前で取得する。
func (q *Queries) GetGroupByName(ctx context.Context, arg GetGroupByNameParams) (Group, error) {
	row := q.db.QueryRowContext(ctx, getGroupByName, arg.TenantID, arg.Name)
	var g Group
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, timeColumn{&g.CreatedAt}, timeColumn{&g.UpdatedAt})
	return g, err
}

const createGroup = `
INSERT INTO tenant_groups (id, tenant_id, name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`

// CreateGroupParams は CreateGroup の引数。
type CreateGroupParams struct {
	ID        string
	TenantID  string
	Name      string
	CreatedAt time.Time
}

// CreateGroup はグループを作成する。(tenant_id, name) が重複する場合はUNIQUE制約違反になる。
func (q *Queries) CreateGroup(ctx context.Context, arg CreateGroupParams) error {
	ts := formatTime(arg.CreatedAt)
	_, err := q.db.ExecContext(ctx, createGroup, arg.ID, arg.TenantID, arg.Name, ts, ts)
	return err
}

const addGroupMember = `
INSERT INTO user_groups (tenant_id, user_id, group_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (group_id, user_id) DO NOTHING
`

// AddGroupMemberParams は AddGroupMember の引数。
type AddGroupMemberParams struct {
	TenantID  string
	UserID    string
	GroupID   string
	CreatedAt time.Time
}

// AddGroupMember はグループにメンバーを追加する。既に所属している場合は何もしない。
func (q *Queries) AddGroupMember(ctx context.Context, arg AddGroupMemberParams) error {
	_, err := q.db.ExecContext(ctx, addGroupMember, arg.TenantID, arg.UserID, arg.GroupID, formatTime(arg.CreatedAt))
	return err
}

const removeGroupMember = `
DELETE FROM user_groups
WHERE group_id = ? AND user_id = ?
`

// RemoveGroupMemberParams は RemoveGroupMember の引数。
type RemoveGroupMemberParams struct {
	GroupID string
	UserID  string
}

// RemoveGroupMember はグループからメンバーを削除し、削除された行数を返す。
func (q *Queries) RemoveGroupMember(ctx context.Context, arg RemoveGroupMemberParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, removeGroupMember, arg.GroupID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const isGroupMember = `
SELECT EXISTS (
    SELECT 1 FROM user_groups WHERE group_id = ? AND user_id = ?
)
`

// IsGroupMemberParams は IsGroupMember の引数。
type IsGroupMemberParams struct {
	GroupID string
	UserID  string
}

// IsGroupMember はユーザーがグループに所属しているかを返す。
func (q *Queries) IsGroupMember(ctx context.Context, arg IsGroupMemberParams) (bool, error) {
	var exists int64
	if err := q.db.QueryRowContext(ctx, isGroupMember, arg.GroupID, arg.UserID).Scan(&exists); err != nil {
		return false, err
	}
	return exists != 0, nil
}
