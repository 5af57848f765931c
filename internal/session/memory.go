package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内メモリのみで動作するStore実装。
// 開発環境とテストで使用する。再起動でセッションは消える。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord

	// now は時刻取得の差し替えポイント。テストで期限判定を制御する。
	now func() time.Time
}

type memoryRecord struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// Create は新規レコードを保存する。IDが既に存在する場合はErrDuplicateID。
func (s *MemoryStore) Create(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return ErrDuplicateID
	}
	s.records[record.ID] = memoryRecord{
		payload:   append([]byte(nil), record.Payload...),
		expiresAt: record.ExpiresAt,
	}
	return nil
}

// Save はIDをキーに冪等なupsertを行う。
func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = memoryRecord{
		payload:   append([]byte(nil), record.Payload...),
		expiresAt: record.ExpiresAt,
	}
	return nil
}

// Load は指定IDのレコードを返す。未知のIDと期限切れはどちらもnil。
func (s *MemoryStore) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || !rec.expiresAt.After(s.now()) {
		return nil, nil
	}
	return &Record{
		ID:        id,
		Payload:   append([]byte(nil), rec.payload...),
		ExpiresAt: rec.expiresAt,
	}, nil
}

// Delete は指定IDのレコードを削除する。存在しなくてもエラーにならない。
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// DeleteExpired は期限切れレコードを一括削除し、削除件数を返す。
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var deleted int64
	for id, rec := range s.records {
		if !rec.expiresAt.After(now) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len は現在保持しているレコード数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
