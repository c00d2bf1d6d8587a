package notification

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/notihub/internal/notification/migrations"
	"github.com/nao1215/notihub/pkg/event"
	"github.com/nao1215/notihub/pkg/httpclient"
	"github.com/nao1215/notihub/pkg/middleware"
	"github.com/nao1215/notihub/pkg/migration"
)

// serviceName はログとメトリクスに付与するサービス名。
const serviceName = "notification"

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はRunで起動するHTTPサーバー。
	httpServer *http.Server
	// db はSQLiteデータベース接続。
	db *sql.DB
	// service は通知エンジン。
	service *Service
	// publisher はドメインイベントの送信先。
	publisher event.Publisher
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用してからルーティングを設定する。
func NewServer(cfg Config, logger *zap.Logger) (*Server, error) {
	sqlDB, err := OpenDB(context.Background(), cfg.dsn(), logger)
	if err != nil {
		return nil, err
	}

	publisher := newPublisher(cfg, systemToken(cfg.JWTSecret))
	opts := []ServiceOption{
		WithPublisher(publisher),
		WithLogger(logger),
		WithStoreTimeout(cfg.StoreTimeout),
	}
	if cfg.MailerURL != "" {
		mailClient := httpclient.New(cfg.MailerURL,
			httpclient.WithTimeout(10*time.Second),
			httpclient.WithTokenSource(systemToken(cfg.JWTSecret)),
		)
		opts = append(opts, WithMailer(NewHTTPMailer(mailClient)))
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))

	s := &Server{
		router:    router,
		db:        sqlDB,
		service:   NewService(sqlDB, opts...),
		publisher: publisher,
		logger:    logger,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.GET("/health", s.handleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	s.registerRoutes(api)

	return s, nil
}

// OpenDB はSQLiteデータベースを開き、埋め込みのマイグレーションを適用する。
func OpenDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := migration.Run(ctx, sqlDB, migrations.FS, ".", logger); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return sqlDB, nil
}

// newPublisher は設定に応じたイベント送信先を生成する。
func newPublisher(cfg Config, token httpclient.TokenSource) event.Publisher {
	switch cfg.EventSink {
	case EventSinkKafka:
		return event.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case EventSinkNone:
		return event.NopPublisher{}
	default:
		return event.NewHTTPPublisher(httpclient.New(cfg.EventStoreURL, httpclient.WithTokenSource(token)))
	}
}

// systemToken は内部サービス呼び出し用に、リクエストのテナントで署名した短命のJWTを発行する。
func systemToken(secret string) httpclient.TokenSource {
	return func(ctx context.Context) (string, error) {
		return middleware.GenerateJWT(secret, serviceName, httpclient.TenantIDFromContext(ctx), middleware.RoleSystem, time.Minute)
	}
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止し、イベント送信先とデータベースを閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.publisher.Close(); cerr != nil {
		s.logger.Warn("イベント送信先のクローズに失敗しました", zap.Error(cerr))
	}
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// registerRoutes は /api/v1 配下のルーティングを設定する。
// 認証ミドルウェアは呼び出し元で適用済みであること。
func (s *Server) registerRoutes(api *gin.RouterGroup) {
	admin := middleware.RequireRole(middleware.RoleAdmin)

	notifications := api.Group("/notifications")
	{
		// 通知の作成（管理者または内部サービス）
		notifications.POST("", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleSystem), s.handleCreate())
		// テナント内の全通知一覧
		notifications.GET("", admin, s.handleListAll())
		// 通知の論理削除
		notifications.DELETE("/:id", admin, s.handleDelete())
	}

	users := api.Group("/users/:user_id/notifications")
	{
		users.GET("", s.handleListForUser())
		users.GET("/:id", s.handleGetUserDelivery())
		users.PUT("/:id/read", s.handleSetUserRead(true))
		users.PUT("/:id/unread", s.handleSetUserRead(false))
	}

	groups := api.Group("/groups/:group_name")
	{
		groups.GET("/notifications", s.handleListForGroup())
		groups.PUT("/users/:user_id/notifications/:id/read", s.handleSetGroupMemberRead(true))
		groups.PUT("/users/:user_id/notifications/:id/unread", s.handleSetGroupMemberRead(false))
		groups.PUT("/members/:user_id", admin, s.handleAddMember())
		groups.DELETE("/members/:user_id", admin, s.handleRemoveMember())
	}
}

// handleHealth はヘルスチェックのハンドラ。データベースへの疎通も確認する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}

// recipientIDs は数値と文字列のどちらのユーザーIDも受け付けるJSON配列。
type recipientIDs []string

// UnmarshalJSON は [10, "20"] のような配列を文字列のスライスに変換する。
func (r *recipientIDs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			ids = append(ids, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("ユーザーIDは数値または文字列で指定してください: %s", item)
		}
		ids = append(ids, n.String())
	}
	*r = ids
	return nil
}

// createRequest は通知作成リクエストのJSON構造。
type createRequest struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知本文。
	Message string `json:"message"`
	// Type は通知種別（EMAIL / SMS / IN_APP / PUSH）。
	Type string `json:"type"`
	// UserIDs は配信先ユーザー。指定された場合はGroupNameより優先する。
	UserIDs recipientIDs `json:"user_ids"`
	// GroupName は配信先グループ名。
	GroupName string `json:"group_name"`
	// Email はメール送信先のアドレス。
	Email string `json:"email"`
}

// handleCreate は通知を作成し、配信先に配信状態を作成するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		result, err := s.service.CreateNotification(c.Request.Context(), CreateRequest{
			TenantID:  middleware.GetTenantID(c),
			Title:     req.Title,
			Message:   req.Message,
			Type:      req.Type,
			UserIDs:   req.UserIDs,
			GroupName: req.GroupName,
			Email:     req.Email,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// handleListAll は管理者向けにテナント内の全通知を返すハンドラ。
func (s *Server) handleListAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, ok := pagination(c)
		if !ok {
			return
		}
		result, err := s.service.ListAllForTenant(c.Request.Context(), middleware.GetTenantID(c), page, pageSize)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// handleDelete は通知を論理削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.service.SoftDelete(c.Request.Context(), middleware.GetTenantID(c), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "通知を削除しました"})
	}
}

// handleListForUser はユーザー宛ての通知一覧を返すハンドラ。
func (s *Server) handleListForUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if !allowSelfOrAdmin(c, userID) {
			return
		}
		page, pageSize, ok := pagination(c)
		if !ok {
			return
		}
		result, err := s.service.ListForUser(c.Request.Context(), middleware.GetTenantID(c), userID, page, pageSize)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// handleGetUserDelivery はユーザー個別の配信状態を返すハンドラ。
func (s *Server) handleGetUserDelivery() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if !allowSelfOrAdmin(c, userID) {
			return
		}
		state, err := s.service.GetUserDelivery(c.Request.Context(), middleware.GetTenantID(c), userID, c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// handleSetUserRead はユーザー宛て通知の既読・未読を設定するハンドラ。
func (s *Server) handleSetUserRead(isRead bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if !allowSelfOrAdmin(c, userID) {
			return
		}
		err := s.service.SetUserRead(c.Request.Context(), middleware.GetTenantID(c), userID, c.Param("id"), isRead)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": readMessage(isRead)})
	}
}

// handleListForGroup はグループ宛ての通知一覧を返すハンドラ。
func (s *Server) handleListForGroup() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, ok := pagination(c)
		if !ok {
			return
		}
		result, err := s.service.ListForGroup(c.Request.Context(), middleware.GetTenantID(c), c.Param("group_name"), page, pageSize)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// handleSetGroupMemberRead はグループ宛て通知のメンバー個別の既読・未読を設定するハンドラ。
func (s *Server) handleSetGroupMemberRead(isRead bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if !allowSelfOrAdmin(c, userID) {
			return
		}
		err := s.service.SetGroupMemberRead(c.Request.Context(), middleware.GetTenantID(c), userID, c.Param("group_name"), c.Param("id"), isRead)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": readMessage(isRead)})
	}
}

// handleAddMember はユーザーをグループに追加するハンドラ。グループが無ければ作成する。
func (s *Server) handleAddMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		group, err := s.service.AddMember(c.Request.Context(), middleware.GetTenantID(c), c.Param("group_name"), c.Param("user_id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

// handleRemoveMember はユーザーをグループから外すハンドラ。
func (s *Server) handleRemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.service.RemoveMember(c.Request.Context(), middleware.GetTenantID(c), c.Param("group_name"), c.Param("user_id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// allowSelfOrAdmin は本人または管理者のリクエストかどうかを確認する。
// 許可しない場合は403を返してfalseを返す。
func allowSelfOrAdmin(c *gin.Context, userID string) bool {
	if middleware.GetRole(c) == middleware.RoleAdmin || middleware.GetUserID(c) == userID {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
	return false
}

// pagination はクエリパラメータ page と page_size（別名 limit）を読み取る。
// 数値でない場合は400を返してfalseを返す。
func pagination(c *gin.Context) (int, int, bool) {
	page, err := queryInt(c, "page")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageは整数で指定してください"})
		return 0, 0, false
	}
	sizeKey := "page_size"
	if _, ok := c.GetQuery(sizeKey); !ok {
		sizeKey = "limit"
	}
	pageSize, err := queryInt(c, sizeKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": sizeKey + "は整数で指定してください"})
		return 0, 0, false
	}
	return page, pageSize, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func readMessage(isRead bool) string {
	if isRead {
		return "通知を既読にしました"
	}
	return "通知を未読にしました"
}

// respondError は通知エンジンのエラーをHTTPレスポンスに変換する。
// 5xxの場合は詳細をログに記録し、クライアントには汎用メッセージを返す。
func (s *Server) respondError(c *gin.Context, err error) {
	status, message := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("通知APIの処理に失敗しました",
			zap.String("path", c.FullPath()),
			zap.String("tenant_id", middleware.GetTenantID(c)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}
