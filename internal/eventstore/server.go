package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/notihub/internal/eventstore/migrations"
	"github.com/nao1215/notihub/pkg/event"
	"github.com/nao1215/notihub/pkg/metrics"
	"github.com/nao1215/notihub/pkg/middleware"
	"github.com/nao1215/notihub/pkg/migration"
)

const (
	serviceName = "eventstore"
	// defaultLimit は一覧取得で件数指定が無い場合の最大件数。
	defaultLimit = 100
	// maxLimit は一覧取得で指定できる最大件数。
	maxLimit = 1000
)

// Server はイベントストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はRunで起動するHTTPサーバー。
	httpServer *http.Server
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はイベントテーブルの操作。
	store *Store
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しいイベントストアサーバーを生成する。
func NewServer(cfg Config, logger *zap.Logger) (*Server, error) {
	sqlDB, err := OpenDB(context.Background(), cfg.dsn(), logger)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(serviceName))

	s := &Server{
		router: router,
		db:     sqlDB,
		store:  NewStore(sqlDB),
		logger: logger,
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

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止し、データベースを閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// registerRoutes は /api/v1 配下のルーティングを設定する。
func (s *Server) registerRoutes(api *gin.RouterGroup) {
	admin := middleware.RequireRole(middleware.RoleAdmin)

	events := api.Group("/events")
	{
		// イベントの追記（内部サービスまたは管理者）
		events.POST("", middleware.RequireRole(middleware.RoleSystem, middleware.RoleAdmin), s.handleAppendEvent())
		// テナントの全イベント取得
		events.GET("", admin, s.handleGetAllEvents())
		// AggregateIDによるイベント取得
		events.GET("/aggregate/:aggregate_id", admin, s.handleGetEventsByAggregateID())
		// AggregateIDの最新バージョン取得
		events.GET("/aggregate/:aggregate_id/version", admin, s.handleGetLatestVersion())
		// イベントタイプによるイベント取得
		events.GET("/type/:event_type", admin, s.handleGetEventsByType())
		// 日時指定によるイベント取得（クエリパラメータ: since）
		events.GET("/since", admin, s.handleGetEventsSince())
	}
}

func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": serviceName})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	}
}

// handleAppendEvent はイベントの追記を処理するハンドラを返す。
// テナントはトークンから決まり、本文のtenant_idが異なる場合は拒否する。
func (s *Server) handleAppendEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev event.Event
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		tenantID := middleware.GetTenantID(c)
		if ev.TenantID != "" && ev.TenantID != tenantID {
			c.JSON(http.StatusForbidden, gin.H{"error": "他のテナントのイベントは追記できません"})
			return
		}
		ev.TenantID = tenantID

		stored, created, err := s.store.Append(c.Request.Context(), &ev)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !created {
			c.JSON(http.StatusOK, stored)
			return
		}
		metrics.EventsAppendedTotal.WithLabelValues(string(stored.AggregateType), string(stored.EventType)).Inc()
		c.JSON(http.StatusCreated, stored)
	}
}

// handleGetAllEvents はテナントの全イベントを返すハンドラを返す。
func (s *Server) handleGetAllEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		events, err := s.store.All(c.Request.Context(), middleware.GetTenantID(c), limit)
		s.respondEvents(c, events, err)
	}
}

// handleGetEventsByAggregateID はAggregateIDによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByAggregateID() gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := s.store.ByAggregate(c.Request.Context(), middleware.GetTenantID(c), c.Param("aggregate_id"))
		s.respondEvents(c, events, err)
	}
}

// handleGetEventsByType はイベントタイプによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByType() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		events, err := s.store.ByType(c.Request.Context(), middleware.GetTenantID(c), c.Param("event_type"), limit)
		s.respondEvents(c, events, err)
	}
}

// handleGetEventsSince は日時指定によるイベント取得を処理するハンドラを返す。
// sinceはRFC3339形式で指定する。
func (s *Server) handleGetEventsSince() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("since")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sinceパラメータは必須です"})
			return
		}
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sinceはRFC3339形式で指定してください"})
			return
		}
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		events, err := s.store.Since(c.Request.Context(), middleware.GetTenantID(c), since, limit)
		s.respondEvents(c, events, err)
	}
}

// handleGetLatestVersion はAggregateIDの最新バージョン取得を処理するハンドラを返す。
func (s *Server) handleGetLatestVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		aggregateID := c.Param("aggregate_id")
		version, err := s.store.LatestVersion(c.Request.Context(), middleware.GetTenantID(c), aggregateID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"aggregate_id": aggregateID, "version": version})
	}
}

// queryLimit はクエリパラメータlimitを読み取る。未指定は既定値、上限を超える場合は上限に丸める。
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limitは正の整数で指定してください"})
		return 0, false
	}
	return min(limit, maxLimit), true
}

func (s *Server) respondEvents(c *gin.Context, events []*event.Event, err error) {
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) respondError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidEvent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("イベントストアの処理に失敗しました",
		zap.String("path", c.FullPath()),
		zap.String("tenant_id", middleware.GetTenantID(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "イベントストアの処理に失敗しました"})
}
