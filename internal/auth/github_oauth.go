package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultGitHubAuthURL     = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL    = "https://github.com/login/oauth/access_token"
	defaultGitHubUserInfoURL = "https://api.github.com/user"
	defaultGitHubEmailsURL   = "https://api.github.com/user/emails"
)

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	EmailsURL   string
}

// GitHubOAuthProvider はGitHub OAuth 2.0による認証を提供する。
// GitHubのプロフィールAPIはメールの検証状態を返さないため、
// 追加でメール一覧APIを呼び出して実効メールアドレスを解決する。
type GitHubOAuthProvider struct {
	config GitHubOAuthConfig
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGitHubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGitHubUserInfoURL
	}
	if config.EmailsURL == "" {
		config.EmailsURL = defaultGitHubEmailsURL
	}
	return &GitHubOAuthProvider{config: config}
}

// Key はプロバイダー識別子を返す。
func (p *GitHubOAuthProvider) Key() string {
	return "github"
}

// Type はプロトコル種別を返す。
func (p *GitHubOAuthProvider) Type() string {
	return TypeOAuth
}

// GetLoginURL はGitHub OAuthの認証URLを生成する。
// スコープにはread:userとuser:emailを含む。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {"read:user user:email"},
		"state":        {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// githubTokenResponse はGitHubのトークンエンドポイントのレスポンス。
type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// githubUserInfo はGitHubのユーザー情報エンドポイントのレスポンス。
// emailは公開設定されていない場合nullになる。
type githubUserInfo struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	AvatarURL string  `json:"avatar_url"`
}

// githubEmail はGitHubのメール一覧エンドポイントの1エントリ。
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、正規化済みユーザー情報を取得する。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Identity, error) {
	// 1. 認可コードをアクセストークンに交換
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	userInfo, err := p.fetchUserInfo(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	// 3. メール一覧から実効メールアドレスを解決
	profileEmail := ""
	if userInfo.Email != nil {
		profileEmail = *userInfo.Email
	}
	email, verified := p.resolveEmail(ctx, tokenResp.AccessToken, profileEmail)

	name := userInfo.Login
	if userInfo.Name != nil && *userInfo.Name != "" {
		name = *userInfo.Name
	}

	return &Identity{
		Provider:          p.Key(),
		Type:              p.Type(),
		ProviderAccountID: strconv.FormatInt(userInfo.ID, 10),
		Email:             email,
		EmailVerified:     verified,
		Name:              name,
		Image:             userInfo.AvatarURL,
		AccessToken:       tokenResp.AccessToken,
	}, nil
}

// resolveEmail はメール一覧APIから実効メールアドレスとその検証状態を解決する。
//
// 優先順位:
//  1. プロフィールのメールが一覧に存在し検証済み
//  2. primaryかつverifiedのエントリ
//  3. verifiedのエントリ（先頭一致）
//  4. primaryのエントリ（未検証のまま）
//  5. 一覧の先頭エントリ（未検証のまま）
//
// トークンが無い、取得に失敗した、一覧が空のいずれの場合も
// （空文字列, false）に静かにフォールバックする。サインイン自体は失敗させない。
func (p *GitHubOAuthProvider) resolveEmail(ctx context.Context, accessToken, profileEmail string) (string, bool) {
	if accessToken == "" {
		return "", false
	}

	emails, err := p.fetchEmails(ctx, accessToken)
	if err != nil {
		slog.Warn("failed to fetch github emails, treating email as unverified",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if len(emails) == 0 {
		return "", false
	}

	// 1. プロフィールのメールが検証済みで一覧に存在する場合は最優先
	if profileEmail != "" {
		for _, e := range emails {
			if e.Email == profileEmail && e.Verified {
				return e.Email, true
			}
		}
	}

	// 2. primary かつ verified
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}

	// 3. verified（先頭一致）
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}

	// 4. primary（未検証）
	for _, e := range emails {
		if e.Primary {
			return e.Email, false
		}
	}

	// 5. 先頭エントリ（未検証）
	return emails[0].Email, false
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *GitHubOAuthProvider) exchangeToken(ctx context.Context, code string) (*githubTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHubはAcceptヘッダーが無いとform-encodedで返すためJSONを明示する
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUserInfo はアクセストークンでGitHubのユーザー情報を取得する。
func (p *GitHubOAuthProvider) fetchUserInfo(ctx context.Context, accessToken string) (*githubUserInfo, error) {
	body, err := p.getJSON(ctx, p.config.UserInfoURL, accessToken)
	if err != nil {
		return nil, err
	}

	var userInfo githubUserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if userInfo.ID == 0 {
		return nil, fmt.Errorf("empty id in user info response")
	}

	return &userInfo, nil
}

// fetchEmails はアクセストークンでGitHubのメール一覧を取得する。
func (p *GitHubOAuthProvider) fetchEmails(ctx context.Context, accessToken string) ([]githubEmail, error) {
	body, err := p.getJSON(ctx, p.config.EmailsURL, accessToken)
	if err != nil {
		return nil, err
	}

	var emails []githubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return nil, fmt.Errorf("failed to parse emails response: %w", err)
	}

	return emails, nil
}

// getJSON は認証付きGETリクエストを実行しレスポンスボディを返す。
func (p *GitHubOAuthProvider) getJSON(ctx context.Context, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
