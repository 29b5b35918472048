package client

import (
	"context"
	"strings"
	"sync"
)

// SessionSource はセッション状態の変化を購読するためのインターフェース。
// コールバックにはログイン中のユーザー（未認証ならnil）が渡される。
type SessionSource interface {
	Subscribe(fn func(user *User))
}

// Store はTodo一覧の楽観的更新付きローカルキャッシュ。
//
// ToggleとDeleteはサーバー応答を待たずにローカル状態を先に更新し、
// サーバーが失敗した場合は更新前のスナップショットに巻き戻す。
// LoadとAddはloadingフラグを立ててサーバー応答を待つ。
// エラーメッセージはErr()で参照でき、次の操作開始時にクリアされる。
// 全フィールドはmutexで保護されており、複数goroutineから安全に使用できる。
type Store struct {
	api API

	mu      sync.Mutex
	items   []Todo
	loading bool
	errMsg  string
	// pending は楽観的更新の世代トークン。同一IDに対する操作が
	// 重なった場合、古い世代の応答（巻き戻しを含む）は適用しない。
	pending map[string]int
}

// NewStore はStoreを生成する。
func NewStore(api API) *Store {
	return &Store{
		api:     api,
		pending: make(map[string]int),
	}
}

// Items はTodo一覧のコピーを返す。
func (s *Store) Items() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Todo, len(s.items))
	copy(out, s.items)
	return out
}

// Loading は一覧取得中かどうかを返す。
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err は直近の失敗したサーバー操作のエラーメッセージを返す。
// エラーが無い場合は空文字列。
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Load はサーバーからTodo一覧を取得してキャッシュを置き換える。
// 取得中はLoading()がtrueを返し、成功・失敗を問わず完了時にfalseに戻る。
// 失敗時はキャッシュをクリアする（古い一覧をエラーと並べて見せない）。
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	todos, err := s.api.ListTodos(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.items = nil
		s.errMsg = err.Error()
		return
	}
	s.items = todos
}

// Add は新しいTodoを作成する。
// テキストが空白のみの場合は何もしない（サーバー呼び出しも発生しない）。
// Create操作は楽観的更新を行わない: loadingフラグを立ててサーバー応答を待ち、
// 成功時にサーバーが採番した行を先頭に挿入する（一覧は新しい順）。
func (s *Store) Add(ctx context.Context, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	created, err := s.api.CreateTodo(ctx, trimmed)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.errMsg = err.Error()
		return
	}
	s.items = append([]Todo{*created}, s.items...)
}

// Toggle は指定Todoの完了状態を指定値へ楽観的に更新する。
// IDがキャッシュに存在しない場合は何もしない。
// サーバー失敗時は元の状態に巻き戻す（ただし後続の操作が同じIDに
// 適用されている場合は巻き戻さない）。
func (s *Store) Toggle(ctx context.Context, id string, completed bool) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.errMsg = ""
	prev := s.items[idx].Completed
	s.items[idx].Completed = completed
	token := s.nextToken(id)
	s.mu.Unlock()

	updated, err := s.api.UpdateTodo(ctx, id, completed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] != token {
		// 後続の操作が適用済み。この応答は反映しない。
		return
	}
	idx = s.indexOf(id)
	if err != nil {
		if idx >= 0 {
			s.items[idx].Completed = prev
		}
		s.errMsg = err.Error()
		return
	}
	if idx >= 0 && updated != nil {
		s.items[idx] = *updated
	}
}

// Delete は指定Todoを楽観的に削除する。
// IDがキャッシュに存在しない場合は何もしない。
// サーバー失敗時は項目を元の位置に復元する。
func (s *Store) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.errMsg = ""
	removed := s.items[idx]
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	token := s.nextToken(id)
	s.mu.Unlock()

	err := s.api.DeleteTodo(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id] != token {
		return
	}
	if err != nil {
		// 巻き戻し: 元の位置に復元する
		if idx > len(s.items) {
			idx = len(s.items)
		}
		s.items = append(s.items[:idx], append([]Todo{removed}, s.items[idx:]...)...)
		s.errMsg = err.Error()
	}
}

// Bind はセッション状態の購読を開始する。
// ログアウト（nilユーザー）でキャッシュとエラーをクリアし、
// ログイン時にキャッシュが空・エラー無し・取得中でなければLoadを実行する。
func (s *Store) Bind(ctx context.Context, source SessionSource) {
	source.Subscribe(func(user *User) {
		if user == nil {
			s.mu.Lock()
			s.items = nil
			s.errMsg = ""
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		shouldLoad := len(s.items) == 0 && s.errMsg == "" && !s.loading
		s.mu.Unlock()
		if shouldLoad {
			s.Load(ctx)
		}
	})
}

// indexOf は指定IDの項目の添字を返す。存在しない場合は-1。
// 呼び出し側でmutexを保持していること。
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// nextToken は指定IDの操作世代を進めて返す。
// 呼び出し側でmutexを保持していること。
func (s *Store) nextToken(id string) int {
	s.pending[id]++
	return s.pending[id]
}
