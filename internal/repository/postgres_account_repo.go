package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Rettend/todoman/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したaccountリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByProviderAccountID はproviderとprovider_account_idでaccountを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByProviderAccountID(ctx context.Context, provider, providerAccountID string) (*model.Account, error) {
	account := &model.Account{}
	var accessToken, refreshToken sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_account_id, type, access_token, refresh_token, created_at
		 FROM accounts
		 WHERE provider = $1 AND provider_account_id = $2`,
		provider, providerAccountID,
	).Scan(&account.ID, &account.UserID, &account.Provider, &account.ProviderAccountID,
		&account.Type, &accessToken, &refreshToken, &account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	account.AccessToken = accessToken.String
	account.RefreshToken = refreshToken.String
	return account, nil
}

// ExistsByUserAndProvider は指定ユーザーが指定providerのaccountを持つかを返す。
func (r *PostgresAccountRepo) ExistsByUserAndProvider(ctx context.Context, userID, provider string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1 AND provider = $2)`,
		userID, provider,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return exists, nil
}

// Create はaccountを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, provider, provider_account_id, type, access_token, refresh_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, account.Provider, account.ProviderAccountID,
		account.Type, account.AccessToken, account.RefreshToken, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
