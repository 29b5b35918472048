package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Rettend/todoman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, name, email, image, created_at, updated_at FROM users WHERE id = $1`,
		id,
	)
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, name, email, image, created_at, updated_at FROM users WHERE email = $1`,
		email,
	)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	var email, image sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Name, &email, &image, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.Email = email.String
	user.Image = image.String
	return user, nil
}

// CreateWithAccount はユーザーとaccountを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, nullIfEmpty(user.Email), nullIfEmpty(user.Image), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// accountを作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, provider, provider_account_id, type, access_token, refresh_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, account.Provider, account.ProviderAccountID,
		account.Type, account.AccessToken, account.RefreshToken, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateProfile はユーザーのname, email, imageを更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, image = $3, updated_at = $4 WHERE id = $5`,
		user.Name, nullIfEmpty(user.Email), nullIfEmpty(user.Image), time.Now(), user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// nullIfEmpty は空文字列をNULLとして保存するためのヘルパー。
// emailにはUNIQUE制約があるため、未検証ユーザー同士が空文字列で衝突しないようにする。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
