package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// CookieName はセッションIDを運ぶCookieの名前。
const CookieName = "session_id"

// ManagerConfig はセッションマネージャーの設定。
type ManagerConfig struct {
	// TTL は無操作時のセッション有効期間。保存のたびに延長される（rolling expiry）。
	TTL time.Duration
	// CookieDomain はCookieのDomain属性。空の場合はホストのみ。
	CookieDomain string
	// CookieSecure はCookieのSecure属性。
	CookieSecure bool
}

// Manager はCookieとストアの間でセッションレコードを往復させるミドルウェア。
//
// 読み込み: session_id Cookieを復号し、ストアからレコードをロードして
// ペイロードをデコードし、リクエストコンテキストにセッションを注入する。
// 書き込み: レスポンスの最初の書き込み直前に、変更があればペイロードを
// エンコードしてストアへ保存し、Cookieを設定する。レコードは最初の
// 書き込みまで作成されない（匿名訪問では何も永続化されない）。
type Manager struct {
	store  Store
	config ManagerConfig
}

// NewManager はManagerを生成する。
func NewManager(store Store, config ManagerConfig) *Manager {
	return &Manager{store: store, config: config}
}

// Middleware はセッションの読み込みとコミットを行うミドルウェアを返す。
// ストア障害とペイロードのデコード失敗はハードエラーとして500を返す。
// 信頼境界の破損を隠さないため、これらをゲスト扱いに降格することはない。
func (m *Manager) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.loadSession(r)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			ctx := ContextWithSession(r.Context(), sess)

			sw := &sessionWriter{
				ResponseWriter: w,
				manager:        m,
				session:        sess,
				ctx:            ctx,
			}

			next.ServeHTTP(sw, r.WithContext(ctx))

			// ハンドラーが何も書き込まなかった場合でもコミットする
			sw.finish()
		})
	}
}

// loadSession はCookieからセッションを復元する。
// Cookieなし・未知のID・期限切れはいずれも新規セッションとして扱う。
func (m *Manager) loadSession(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return newSession("", true, nil), nil
	}

	record, err := m.store.Load(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// 未知または期限切れのID。セッション固定化を避けるため
		// 古いIDは引き継がず、コミット時に新しいIDを払い出す。
		return newSession("", true, nil), nil
	}

	values, err := decodePayload(record.Payload)
	if err != nil {
		return nil, err
	}

	return newSession(record.ID, false, values), nil
}

// commit はセッションの状態をストアとCookieに反映する。
// レスポンスヘッダーが書き出される前に呼ばれる必要がある。
func (m *Manager) commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	sess.mu.Lock()
	destroyed := sess.destroyed
	dirty := sess.dirty
	fresh := sess.fresh
	id := sess.id
	staleID := sess.staleID
	sess.mu.Unlock()

	if destroyed {
		if !fresh && id != "" {
			if err := m.store.Delete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
		}
		if staleID != "" {
			if err := m.store.Delete(ctx, staleID); err != nil {
				return fmt.Errorf("failed to delete cycled session: %w", err)
			}
		}
		m.expireCookie(w)
		return nil
	}

	if !dirty {
		return nil
	}

	// Cycleで置き換えられた旧レコードを先に削除する
	if staleID != "" {
		if err := m.store.Delete(ctx, staleID); err != nil {
			return fmt.Errorf("failed to delete cycled session: %w", err)
		}
		sess.mu.Lock()
		sess.staleID = ""
		sess.mu.Unlock()
	}

	payload, err := sess.encodePayload()
	if err != nil {
		return err
	}

	record := &Record{
		Payload:   payload,
		ExpiresAt: time.Now().Add(m.config.TTL),
	}

	if fresh {
		// 新規セッション: IDを払い出してCreateする。
		// 衝突はほぼ起こりえないが、起きた場合は一度だけ再採番する。
		for attempt := 0; ; attempt++ {
			newID, err := generateSessionID()
			if err != nil {
				return err
			}
			record.ID = newID
			err = m.store.Create(ctx, record)
			if err == nil {
				break
			}
			if errors.Is(err, ErrDuplicateID) && attempt == 0 {
				continue
			}
			return fmt.Errorf("failed to create session: %w", err)
		}

		sess.mu.Lock()
		sess.id = record.ID
		sess.fresh = false
		sess.dirty = false
		sess.mu.Unlock()
	} else {
		record.ID = id
		if err := m.store.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		sess.mu.Lock()
		sess.dirty = false
		sess.mu.Unlock()
	}

	m.setCookie(w, record.ID)
	return nil
}

// setCookie はセッションCookieを設定する。有効期限はTTLに合わせて更新される。
func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   int(m.config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// expireCookie はセッションCookieを失効させる。
func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// sessionWriter はhttp.ResponseWriterをラップし、最初のレスポンス書き込みの
// 直前にセッションをコミットする。Cookieはヘッダー送出前にしか設定できないため、
// コミットはWriteHeaderより先に行う必要がある。
type sessionWriter struct {
	http.ResponseWriter
	manager *Manager
	session *Session
	ctx     context.Context

	committed bool
	failed    bool
}

// WriteHeader はコミットを実行してからステータスコードを委譲する。
// コミットに失敗した場合、元のレスポンスは破棄して500を返す。
// 完了したSaveはクライアント切断やレスポンス失敗に関わらず永続とみなす。
func (sw *sessionWriter) WriteHeader(code int) {
	if !sw.committed {
		sw.committed = true
		if err := sw.manager.commit(sw.ctx, sw.ResponseWriter, sw.session); err != nil {
			slog.Error("failed to commit session",
				slog.String("error", err.Error()),
			)
			sw.failed = true
			http.Error(sw.ResponseWriter, "internal server error", http.StatusInternalServerError)
			return
		}
	}
	if sw.failed {
		return
	}
	sw.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200として扱う。
func (sw *sessionWriter) Write(b []byte) (int, error) {
	if !sw.committed {
		sw.WriteHeader(http.StatusOK)
	}
	if sw.failed {
		// 失敗時は500を書き込み済みのため、元のボディは破棄する
		return len(b), nil
	}
	return sw.ResponseWriter.Write(b)
}

// finish はハンドラーが一切書き込まずに戻った場合のコミットを保証する。
func (sw *sessionWriter) finish() {
	if sw.committed {
		return
	}
	sw.committed = true
	if err := sw.manager.commit(sw.ctx, sw.ResponseWriter, sw.session); err != nil {
		slog.Error("failed to commit session",
			slog.String("error", err.Error()),
		)
		http.Error(sw.ResponseWriter, "internal server error", http.StatusInternalServerError)
	}
}
