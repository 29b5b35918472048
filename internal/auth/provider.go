// Package auth はOAuth認証フロー、アカウントリンク、セッション管理を提供する。
package auth

import "context"

// プロバイダー種別。サインインポリシーの検証対象判定に使用する。
const (
	TypeOAuth = "oauth"
	TypeOIDC  = "oidc"
)

// Identity は外部IdPから取得し正規化したユーザー情報を表す。
// Emailは取得できた場合のみ設定され、検証済みかどうかはEmailVerifiedが示す。
type Identity struct {
	Provider          string // "github", "google" 等
	Type              string // TypeOAuth または TypeOIDC
	ProviderAccountID string
	Email             string
	EmailVerified     bool
	Name              string
	Image             string
	AccessToken       string
	RefreshToken      string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 複数IdP（GitHub, Google等）を同一フローで扱うための抽象化。
type OAuthProvider interface {
	// Key はプロバイダー識別子（URLパスやaccounts.providerに使う値）を返す。
	Key() string
	// Type はプロトコル種別（TypeOAuth / TypeOIDC）を返す。
	Type() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、正規化済みユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*Identity, error)
}
