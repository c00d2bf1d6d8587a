package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nao1215/notihub/pkg/event"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("未削除の通知が作成日時付きで保存されること", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		n, err := f.svc.Create(ctx, "tenant-1", "メンテナンス", "本日22時から", "PUSH")
		require.NoError(t, err)
		require.NotEmpty(t, n.ID)
		require.Equal(t, TypePush, n.Type)
		require.False(t, n.IsDeleted)
		require.True(t, n.CreatedAt.Equal(f.clock.Now()))
		require.True(t, n.UpdatedAt.Equal(f.clock.Now()))

		got, err := f.svc.Get(ctx, "tenant-1", n.ID)
		require.NoError(t, err)
		require.Equal(t, n.Title, got.Title)
		require.True(t, got.CreatedAt.Equal(n.CreatedAt))
	})

	tests := []struct {
		name    string
		tenant  string
		title   string
		typ     string
		wantErr error
	}{
		{name: "テナントIDが無い場合", tenant: "", title: "t", typ: "SMS", wantErr: ErrMissingTenant},
		{name: "未知の通知種別の場合", tenant: "tenant-1", title: "t", typ: "FAX", wantErr: ErrInvalidNotificationType},
		{name: "通知種別は大文字小文字を区別すること", tenant: "tenant-1", title: "t", typ: "email", wantErr: ErrInvalidNotificationType},
		{name: "タイトルが空の場合", tenant: "tenant-1", title: "  ", typ: "SMS", wantErr: ErrMissingParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+"はエラーになり保存されないこと", func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			_, err := f.svc.Create(context.Background(), tt.tenant, tt.title, "本文", tt.typ)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 0, f.count(t, "SELECT COUNT(*) FROM notifications"))
		})
	}
}

func TestSoftDelete(t *testing.T) {
	t.Parallel()

	t.Run("論理削除後も行と配信状態が残ること", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		id := f.create(t, CreateRequest{TenantID: "tenant-1", UserIDs: []string{"u1"}})
		require.NoError(t, f.svc.SoftDelete(ctx, "tenant-1", id, "admin-1"))

		n, err := f.svc.Get(ctx, "tenant-1", id)
		require.NoError(t, err)
		require.True(t, n.IsDeleted)
		require.Equal(t, 1, f.count(t, "SELECT COUNT(*) FROM user_notifications WHERE notification_id = ?", id))
		require.Contains(t, f.pub.types(), event.TypeNotificationDeleted)
	})

	t.Run("削除済みや他テナントの通知は見つからないこと", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		id := f.create(t, CreateRequest{TenantID: "tenant-1"})
		require.ErrorIs(t, f.svc.SoftDelete(ctx, "tenant-2", id, "admin-2"), ErrNotificationNotFound)
		require.NoError(t, f.svc.SoftDelete(ctx, "tenant-1", id, "admin-1"))
		require.ErrorIs(t, f.svc.SoftDelete(ctx, "tenant-1", id, "admin-1"), ErrNotificationNotFound)
		require.ErrorIs(t, f.svc.SoftDelete(ctx, "tenant-1", "missing", "admin-1"), ErrNotificationNotFound)
	})
}

func TestGet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.create(t, CreateRequest{TenantID: "tenant-1"})
	_, err := f.svc.Get(context.Background(), "tenant-2", id)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	_, err = f.svc.Get(context.Background(), "tenant-1", "")
	require.ErrorIs(t, err, ErrMissingParameter)
}
