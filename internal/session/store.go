// Package session はCookieベースのセッション管理を提供する。
// セッションレコードの永続化契約、リクエストスコープのセッション値、
// ワンショット通知（フラッシュメッセージ）をまとめて扱う。
package session

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateID はCreateで指定IDのレコードが既に存在することを示す。
// 厳密な「新規作成」セマンティクスが必要な呼び出し元がSaveと区別できるよう、
// 専用のエラーとして公開する。
var ErrDuplicateID = errors.New("session: duplicate session id")

// Record は永続化されるセッションレコード。
// Payloadはストアにとって不透明なバイト列で、ストアは内容を解釈せず
// バイト単位で正確にラウンドトリップする義務のみを負う。
// 論理的なキーバリュー内容のエンコードはセッションマネージャーの責務。
type Record struct {
	ID        string
	Payload   []byte
	ExpiresAt time.Time
}

// Store はセッションレコードの永続化バックエンドの契約。
// バックエンドは実装ごとに差し替え可能で、呼び出し側はこの契約のみに依存する。
type Store interface {
	// Create は新規レコードを永続化する。
	// 指定IDが既に存在する場合はErrDuplicateIDを返す。
	Create(ctx context.Context, record *Record) error

	// Save はIDをキーとした冪等なupsertを行う。
	// 失敗したSaveは、呼び出し元から見て直前にコミット済みのレコードを
	// 破壊してはならない。
	Save(ctx context.Context, record *Record) error

	// Load は指定IDのレコードを取得する。
	// IDが未知の場合と、保存済みexpires_atが既に経過している場合の
	// どちらもnilを返す。期限比較は呼び出し時点のストアの現在時刻で行う。
	Load(ctx context.Context, id string) (*Record, error)

	// Delete は指定IDのレコードを削除する。存在しないIDの削除はエラーではない。
	Delete(ctx context.Context, id string) error

	// DeleteExpired は期限切れレコードを一括削除し、削除件数を返す。
	// リクエストトラフィックとは独立した周期実行を想定しており、
	// 進行中のLoad/Saveと並行して安全に実行できる。
	DeleteExpired(ctx context.Context) (int64, error)
}
