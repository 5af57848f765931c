package session

import (
	"context"
	"net/http"
)

// flashKey はフラッシュメッセージを保持するペイロード内の予約キー。
const flashKey = "_flash"

// FlashKind はフラッシュメッセージの種別。
type FlashKind string

const (
	// FlashSuccess は成功通知を示す。
	FlashSuccess FlashKind = "success"
	// FlashError はエラー通知を示す。
	FlashError FlashKind = "error"
	// FlashInfo は情報通知を示す。
	FlashInfo FlashKind = "info"
)

// Flash はセッションに載って次のリクエストへ届くワンショット通知。
// write-once-read-once: 書き込みは未読の値を上書きし、
// 読み取りはペイロードから値を取り除く。キューイングは行わない。
type Flash struct {
	Message string    `json:"message"`
	Kind    FlashKind `json:"kind"`
}

// NewSuccessFlash は成功通知を生成する。
func NewSuccessFlash(message string) Flash {
	return Flash{Message: message, Kind: FlashSuccess}
}

// NewErrorFlash はエラー通知を生成する。
func NewErrorFlash(message string) Flash {
	return Flash{Message: message, Kind: FlashError}
}

// NewInfoFlash は情報通知を生成する。
func NewInfoFlash(message string) Flash {
	return Flash{Message: message, Kind: FlashInfo}
}

// SetFlash はフラッシュメッセージを設定する。未読の値があれば上書きされる。
func (s *Session) SetFlash(flash Flash) error {
	return s.Set(flashKey, flash)
}

// TakeFlash はフラッシュメッセージを読み取りと同時に削除する。
// 2回目の呼び出しは、間にSetFlashがない限りnilを返す。
// 値が存在しない場合はセッションを変更済みにしない。
func (s *Session) TakeFlash() (*Flash, error) {
	var flash Flash
	ok, err := s.Get(flashKey, &flash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	s.Remove(flashKey)
	return &flash, nil
}

// RedirectWithFlash はフラッシュメッセージを設定して303リダイレクトを返す。
// フォーム処理後のPOST-Redirect-GETで使用する。
func RedirectWithFlash(w http.ResponseWriter, r *http.Request, flash Flash, path string) error {
	sess, err := FromContext(r.Context())
	if err != nil {
		return err
	}
	if err := sess.SetFlash(flash); err != nil {
		return err
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
	return nil
}

// flashContextKey はリゾルバーが取り出したフラッシュを格納するためのキー。
var flashContextKey = contextKey("flash")

// FlashFromContext はリゾルバーが取り出した保留中のフラッシュを返す。
// 保留中のメッセージがなければnil。
func FlashFromContext(ctx context.Context) *Flash {
	flash, _ := ctx.Value(flashContextKey).(*Flash)
	return flash
}

// ContextWithFlash はコンテキストに取り出し済みのフラッシュを注入する。
// Current-Userリゾルバーが使用する。
func ContextWithFlash(ctx context.Context, flash *Flash) context.Context {
	if flash == nil {
		return ctx
	}
	return context.WithValue(ctx, flashContextKey, flash)
}
