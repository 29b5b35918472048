package auth

import (
	"net/url"

	"github.com/Rettend/todoman/internal/model"
)

// DecisionKind はサインインポリシーの判定結果種別。
type DecisionKind int

const (
	// DecisionDenyNoEmail はメールアドレスが取得できなかったための拒否。
	DecisionDenyNoEmail DecisionKind = iota
	// DecisionDenyUnverified はメールアドレスが未検証のための拒否。
	DecisionDenyUnverified
	// DecisionSignIn は既存ユーザーとしてのサインイン許可。
	DecisionSignIn
	// DecisionLinkPrompt は手動リンク確認フローへの誘導。
	DecisionLinkPrompt
	// DecisionCreateUser は新規ユーザー作成を伴うサインイン許可。
	DecisionCreateUser
)

// PolicyInput はサインインポリシーの判定に必要なストア状態のスナップショット。
type PolicyInput struct {
	// Identity はIdPから取得した正規化済みユーザー情報。
	Identity *Identity
	// Account は(provider, provider_account_id)が一致する既存account行。無ければnil。
	Account *model.Account
	// EmailUser はIdentity.Emailと同じメールを持つ既存ユーザー。無ければnil。
	EmailUser *model.User
	// EmailUserHasProvider はEmailUserが同一providerのaccountを既に持つか。
	EmailUserHasProvider bool
	// SessionUserID は現在の認証済みセッションのユーザーID。未認証なら空文字列。
	SessionUserID string
}

// Decision はサインインポリシーの判定結果。
type Decision struct {
	Kind DecisionKind
	// UserID はDecisionSignIn時のサインイン対象ユーザーID。
	UserID string
	// LinkAccount はDecisionSignIn時に新しいAccount行を作成すべきかを示す。
	// ログイン中ユーザーへの明示的なプロバイダー追加の場合にtrueになる。
	LinkAccount bool
}

// Decide はサインイン試行に対するポリシー判定を行う純粋関数。
//
// 判定は以下の順で評価される:
//  1. メール無し → 拒否
//  2. OAuth/OIDCアカウントでメール未検証 → 拒否（EmailNotVerified）
//  3. (provider, provider_account_id) が一致するaccountが存在 → そのユーザーで許可
//  4. 同一メールの既存ユーザーが存在:
//     a. 現在のセッションがそのユーザー → 許可（プロバイダー追加としてリンク）
//     b. そのユーザーが同providerのaccountを既に持つ → 許可
//     c. それ以外 → 手動リンク確認フローへ誘導
//  5. 同一メールのユーザーが存在しない → 新規ユーザー作成を伴い許可
//
// 4cにより、検証されていない同一メールの別プロバイダー経由での
// 暗黙のアカウント乗っ取りを防ぐ。
func Decide(in PolicyInput) Decision {
	ident := in.Identity

	if ident.Email == "" {
		return Decision{Kind: DecisionDenyNoEmail}
	}

	if (ident.Type == TypeOAuth || ident.Type == TypeOIDC) && !ident.EmailVerified {
		return Decision{Kind: DecisionDenyUnverified}
	}

	// 既存のaccount行があれば通常の再サインイン
	if in.Account != nil {
		return Decision{Kind: DecisionSignIn, UserID: in.Account.UserID}
	}

	if in.EmailUser != nil {
		// ログイン中ユーザー自身への再認証・プロバイダー追加
		if in.SessionUserID != "" && in.SessionUserID == in.EmailUser.ID {
			return Decision{Kind: DecisionSignIn, UserID: in.EmailUser.ID, LinkAccount: true}
		}

		// 同providerが既にリンク済みなら通常のサインイン
		if in.EmailUserHasProvider {
			return Decision{Kind: DecisionSignIn, UserID: in.EmailUser.ID}
		}

		// メールは既存ユーザーのものだがこのproviderは未リンク:
		// 直接サインインさせず、明示的なリンク確認を求める
		return Decision{Kind: DecisionLinkPrompt}
	}

	return Decision{Kind: DecisionCreateUser}
}

// Redirect はポリシー判定によるリダイレクト先を表す。
// PathはBaseURLからの相対パス。
type Redirect struct {
	Path string
}

// リダイレクト先パス
const (
	redirectAccessDenied     = "/auth/error?error=AccessDenied"
	redirectEmailNotVerified = "/auth/error?error=EmailNotVerified"
)

// linkPromptPath は手動リンク確認フローへのリダイレクトパスを生成する。
// 衝突したメールアドレスとリンク対象のプロバイダー名をパラメータで渡す。
func linkPromptPath(email, provider string) string {
	params := url.Values{
		"error":          {"AccountExistsSignInToLink"},
		"email":          {email},
		"providerToLink": {provider},
	}
	return "/auth/link-account-prompt?" + params.Encode()
}
