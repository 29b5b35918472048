// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/Rettend/todoman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithAccount はユーザーとaccountを同一トランザクションで作成する。
	CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error

	// UpdateProfile はユーザーのname, email, imageを更新する。
	// IdPから新しい検証済みプロフィールが届いた場合に使用する。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// AccountRepository は外部IdP紐付け情報の永続化インターフェース。
type AccountRepository interface {
	// FindByProviderAccountID はproviderとprovider_account_idでaccountを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAccountID(ctx context.Context, provider, providerAccountID string) (*model.Account, error)

	// ExistsByUserAndProvider は指定ユーザーが指定providerのaccountを持つかを返す。
	ExistsByUserAndProvider(ctx context.Context, userID, provider string) (bool, error)

	// Create はaccountを作成する。
	Create(ctx context.Context, account *model.Account) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TodoRepository はTodoデータの永続化インターフェース。
// 全ての操作は所有者のユーザーIDでフィルタされる。
type TodoRepository interface {
	// ListByUserID はユーザーのTodo一覧を作成日時の新しい順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error)

	// Create はTodoを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// UpdateCompleted は所有者が一致する場合のみcompletedを更新し、更新後の行を返す。
	// 行が存在しない、または所有者が異なる場合はnilを返す（両者は区別しない）。
	UpdateCompleted(ctx context.Context, id, userID string, completed bool) (*model.Todo, error)

	// Delete は所有者が一致する場合のみTodoを削除する。
	// 削除した場合はtrue、行が存在しない・所有者が異なる場合はfalseを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}
