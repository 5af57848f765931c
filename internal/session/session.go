package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hitoshi/textdesk/internal/model"
)

// userIDKey は認証済みユーザーIDを保持するペイロード内の固定キー。
const userIDKey = "authenticated_user_id"

// Session はリクエストスコープのセッション値を保持する。
// セッションマネージャーがレコードから復元し、レスポンス書き込み時に
// 変更があればストアへコミットする。
// 同一リクエスト内での並行アクセスに備えて内部ロックを持つが、
// セッションIDを跨いだ同期はストアが唯一の同期点となる。
type Session struct {
	mu sync.Mutex

	id     string
	values map[string]json.RawMessage

	// fresh はまだ永続化レコードが存在しないことを示す。
	// 最初の書き込みまでレコードは作成されない。
	fresh bool
	// dirty はペイロードに未保存の変更があることを示す。
	dirty bool
	// destroyed はサインアウト等でレコード削除が要求されたことを示す。
	destroyed bool
	// staleID はCycleで置き換えられた旧レコードのID。コミット時に削除される。
	staleID string
}

// newSession は空のセッションを生成する。
func newSession(id string, fresh bool, values map[string]json.RawMessage) *Session {
	if values == nil {
		values = make(map[string]json.RawMessage)
	}
	return &Session{id: id, fresh: fresh, values: values}
}

// ID はセッションIDを返す。未永続化のセッションでは空文字列の場合がある。
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Get はキーに対応する値をdestへデコードする。
// キーが存在しない場合は(false, nil)を返す。
func (s *Session) Get(key string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode session value %q: %w", key, err)
	}
	return true, nil
}

// Set はキーに値を設定し、セッションを変更済みにする。
func (s *Session) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Remove はキーを削除する。キーが存在した場合のみ変更済みにする。
func (s *Session) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Destroy はセッションレコードの削除を予約する。
// コミット時にレコードが削除され、Cookieが失効する。
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

// Cycle は現在のレコードを破棄し、値を引き継いだまま新しいIDのセッションへ
// 切り替える。サインイン直後のセッション固定化対策と、サインアウト後の
// 通知を新しいセッションに載せる用途で使用する。
func (s *Session) Cycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh && s.id != "" {
		s.staleID = s.id
	}
	s.id = ""
	s.fresh = true
	s.dirty = true
}

// SetUserID は認証済みユーザーIDをセッションに記録する。サインイン時に使用する。
func (s *Session) SetUserID(id model.UserID) error {
	return s.Set(userIDKey, id.Int64())
}

// UserID はセッションに記録された認証済みユーザーIDを返す。
// 未記録の場合は(0, false, nil)。
func (s *Session) UserID() (model.UserID, bool, error) {
	var raw int64
	ok, err := s.Get(userIDKey, &raw)
	if err != nil || !ok {
		return 0, false, err
	}
	// セッション由来の値は検証済みとして扱う（DB境界コンストラクタを使用）
	return model.IDFromDB[model.UserEntity](raw), true, nil
}

// ClearUserID は認証済みユーザーIDをセッションから取り除く。
func (s *Session) ClearUserID() {
	s.Remove(userIDKey)
}

// encodePayload はセッション値をレコードのペイロードにエンコードする。
func (s *Session) encodePayload() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(s.values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session payload: %w", err)
	}
	return payload, nil
}

// decodePayload はレコードのペイロードをセッション値にデコードする。
func decodePayload(payload []byte) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	if len(payload) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}
	return values, nil
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// FromContext はリクエストコンテキストからセッションを取得する。
// セッションマネージャーを通過したリクエストでのみ有効。
func FromContext(ctx context.Context) (*Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return sess, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// NewForTest はテスト用に独立したセッションを生成する。
func NewForTest() *Session {
	return newSession("", true, nil)
}
