// Package view はサーバーレンダリングHTMLのテンプレート描画を提供する。
// レイアウトと各ページテンプレートを埋め込みファイルシステムから読み込み、
// フラッシュメッセージバナーを全ページ共通で描画する。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/textdesk/internal/auth"
	"github.com/hitoshi/textdesk/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Data はテンプレート描画に渡す共通データ。
type Data struct {
	// SiteName はサイト名。レイアウトのタイトルに使用される。
	SiteName string
	// Title はページタイトル。
	Title string
	// CurrentUser は現在のリクエストの認証状態。
	CurrentUser auth.CurrentUser
	// Flash は前のリクエストで設定されたフラッシュメッセージ。未設定ならnil。
	Flash *session.Flash
	// CSRFToken はフォームに埋め込むCSRFトークン。
	CSRFToken string
	// Content はページ固有のデータ。
	Content any
}

// Renderer はレイアウト付きのページ描画を行う。
type Renderer struct {
	pages    map[string]*template.Template
	logger   *slog.Logger
	siteName string
}

// pageNames は各ページテンプレートのファイル名（拡張子なし）。
var pageNames = []string{
	"root",
	"sign_in",
	"dashboard",
	"todos",
	"text_analyzer",
	"checkout",
	"admin_dashboard",
	"admin_users",
	"admin_user_detail",
	"admin_orders",
	"admin_order_detail",
	"error",
}

// NewRenderer はRendererの新しいインスタンスを生成する。
// 全ページテンプレートをレイアウトと組み合わせて事前にパースする。
// テンプレートの不備は起動時に検出される。
func NewRenderer(logger *slog.Logger, siteName string) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(template.FuncMap{
			"isAuthenticated": auth.IsAuthenticated,
			"isAdmin":         auth.IsAdmin,
		}).ParseFS(templateFS,
			"templates/layout.html",
			"templates/flash.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s のパースに失敗しました: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{
		pages:    pages,
		logger:   logger,
		siteName: siteName,
	}, nil
}

// Render は指定ページをレイアウト付きで描画する。
// 描画失敗時は500を返す（ヘッダー送出前のみ有効）。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("未知のページテンプレートが指定されました",
			slog.String("page", page),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if data.SiteName == "" {
		data.SiteName = r.siteName
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		r.logger.Error("テンプレートの描画に失敗しました",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// RenderError はエラーページを描画する。
// メッセージは利用者向けの汎用文言のみを表示し、詳細はログにのみ残す。
func (r *Renderer) RenderError(w http.ResponseWriter, req *http.Request, status int, message string) {
	r.Render(w, status, "error", Data{
		Title:       http.StatusText(status),
		CurrentUser: auth.CurrentUserFromContext(req.Context()),
		Content: ErrorData{
			Status:  status,
			Message: message,
		},
	})
}

// ErrorData はエラーページのコンテンツデータ。
type ErrorData struct {
	Status  int
	Message string
}
