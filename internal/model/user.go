// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Emailは検証済みメールアドレスが得られるまで空文字列のことがある。
type User struct {
	ID        string
	Name      string
	Email     string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account は外部IdPとの紐付け情報を表す。
// 1ユーザーに複数のIdP（GitHub, Google等）をリンクできる構造。
// (provider, provider_account_id) の組で一意。
type Account struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	Type              string // "oauth" または "oidc"
	AccessToken       string
	RefreshToken      string
	CreatedAt         time.Time
}

// Session はユーザーのログインセッションを表す。
// IDがそのままセッショントークンとしてCookieに載る。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VerificationToken はメールリンク検証用のワンタイムトークンを表す。
// ストアのスキーマ互換のために保持している。
type VerificationToken struct {
	Identifier string
	Token      string
	ExpiresAt  time.Time
}
