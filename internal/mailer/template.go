package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// notificationTemplate は通知メールのHTMLテンプレート。
var notificationTemplate = template.Must(template.ParseFS(templateFS, "templates/notification.html"))

// templateData は通知メールのテンプレートに渡す値。
type templateData struct {
	Brand          string
	SupportAddress string
	Title          string
	Body           string
	Year           int
}

// renderNotification は通知メールのHTML本文を生成する。タイトルと本文はエスケープされる。
func renderNotification(data templateData) (string, error) {
	var buf bytes.Buffer
	if err := notificationTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("メール本文の生成に失敗: %w", err)
	}
	return buf.String(), nil
}
