package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultTimeout はリクエスト全体のデフォルトタイムアウト。
const defaultTimeout = 30 * time.Second

// Client はサービス間通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// bearerToken が空でない場合、Authorizationヘッダーに付与する。
	bearerToken string
	// tokenSource が設定されている場合、リクエストごとにトークンを取得する。bearerTokenより優先する。
	tokenSource TokenSource
}

// TokenSource はリクエストのコンテキストからBearerトークンを生成する関数。
type TokenSource func(ctx context.Context) (string, error)

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBearerToken はすべてのリクエストに付与するBearerトークンを設定する。
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.bearerToken = token
	}
}

// WithTokenSource はリクエストごとにBearerトークンを生成する関数を設定する。
// テナントごとに異なるトークンを付与する場合に使用する。
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = src
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://mailer:8087"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError は接続先が2xx以外のステータスを返したことを表す。
type StatusError struct {
	// StatusCode はレスポンスのHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディ。
	Body string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, e.Body)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token := c.bearerToken
	if c.tokenSource != nil {
		if token, err = c.tokenSource(ctx); err != nil {
			return fmt.Errorf("トークンの取得に失敗: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// コンテキストからユーザーIDとテナントIDを伝播する
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
		req.Header.Set("X-User-ID", userID)
	}
	if tenantID, ok := ctx.Value(contextKeyTenantID).(string); ok && tenantID != "" {
		req.Header.Set("Tenant-Id", tenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// contextKey はコンテキストキーの型。
type contextKey string

const (
	// contextKeyUserID はコンテキストにユーザーIDを格納するためのキー。
	contextKeyUserID contextKey = "user_id"
	// contextKeyTenantID はコンテキストにテナントIDを格納するためのキー。
	contextKeyTenantID contextKey = "tenant_id"
)

// WithUserID はコンテキストにユーザーIDを設定する。
// サービス間通信時にユーザーIDを伝播するために使用する。
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// WithTenantID はコンテキストにテナントIDを設定する。
// 設定されたテナントIDは Tenant-Id ヘッダーとして送信される。
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKeyTenantID, tenantID)
}

// TenantIDFromContext はWithTenantIDで設定したテナントIDを返す。未設定の場合は空文字列。
func TenantIDFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(contextKeyTenantID).(string)
	return tenantID
}
