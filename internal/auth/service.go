package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Rettend/todoman/internal/model"
	"github.com/Rettend/todoman/internal/repository"
)

// サインイン結果のメトリクスラベル
const (
	SignInResultSuccess          = "success"
	SignInResultNewUser          = "new_user"
	SignInResultDeniedNoEmail    = "denied_no_email"
	SignInResultDeniedUnverified = "denied_unverified"
	SignInResultLinkPrompt       = "link_prompt"
)

// MetricsRecorder はサインイン結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSignIn(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// OAuthコールバックの処理、サインインポリシーの適用、
// アカウントリンク、セッションの発行と破棄を担う。
type Service struct {
	providers   map[string]OAuthProvider
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	sessionRepo repository.SessionRepository
	metrics     MetricsRecorder
	config      ServiceConfig
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	providers []OAuthProvider,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	m := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.Key()] = p
	}
	return &Service{
		providers:   m,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		metrics:     metrics,
		config:      config,
	}
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) GetLoginURL(providerKey, state string) (string, error) {
	provider, ok := s.providers[providerKey]
	if !ok {
		return "", fmt.Errorf("unknown oauth provider: %s", providerKey)
	}
	return provider.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理する。
//
// IdPから取得したidentityに対しサインインポリシーを適用し、
// 許可された場合はセッションを発行する。拒否・リンク確認が必要な場合は
// リダイレクト先を返す（この場合sessionはnil、errorもnil）。
// sessionUserIDには現在ログイン中のユーザーID（未ログインなら空文字列）を渡す。
func (s *Service) HandleCallback(ctx context.Context, providerKey, code, sessionUserID string) (*model.Session, *Redirect, error) {
	provider, ok := s.providers[providerKey]
	if !ok {
		return nil, nil, fmt.Errorf("unknown oauth provider: %s", providerKey)
	}

	// 1. 認可コードをトークンに交換し、正規化済みユーザー情報を取得
	ident, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. ポリシー判定に必要なストア状態を収集
	account, err := s.accountRepo.FindByProviderAccountID(ctx, ident.Provider, ident.ProviderAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}

	var emailUser *model.User
	var emailUserHasProvider bool
	if ident.Email != "" {
		emailUser, err = s.userRepo.FindByEmail(ctx, ident.Email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if emailUser != nil && account == nil {
			emailUserHasProvider, err = s.accountRepo.ExistsByUserAndProvider(ctx, emailUser.ID, ident.Provider)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to check linked providers: %w", err)
			}
		}
	}

	// 3. サインインポリシーを適用
	decision := Decide(PolicyInput{
		Identity:             ident,
		Account:              account,
		EmailUser:            emailUser,
		EmailUserHasProvider: emailUserHasProvider,
		SessionUserID:        sessionUserID,
	})

	switch decision.Kind {
	case DecisionDenyNoEmail:
		s.recordSignIn(SignInResultDeniedNoEmail)
		slog.Warn("sign-in denied: no email available",
			slog.String("provider", ident.Provider),
		)
		return nil, &Redirect{Path: redirectAccessDenied}, nil

	case DecisionDenyUnverified:
		s.recordSignIn(SignInResultDeniedUnverified)
		slog.Warn("sign-in denied: email not verified",
			slog.String("provider", ident.Provider),
			slog.String("email", ident.Email),
		)
		return nil, &Redirect{Path: redirectEmailNotVerified}, nil

	case DecisionLinkPrompt:
		s.recordSignIn(SignInResultLinkPrompt)
		slog.Info("sign-in redirected to manual link confirmation",
			slog.String("provider", ident.Provider),
			slog.String("email", ident.Email),
		)
		return nil, &Redirect{Path: linkPromptPath(ident.Email, ident.Provider)}, nil

	case DecisionSignIn:
		session, err := s.signInExisting(ctx, decision, ident)
		if err != nil {
			return nil, nil, err
		}
		return session, nil, nil

	case DecisionCreateUser:
		session, err := s.createUserAndSignIn(ctx, ident)
		if err != nil {
			return nil, nil, err
		}
		return session, nil, nil

	default:
		return nil, nil, fmt.Errorf("unexpected sign-in decision: %d", decision.Kind)
	}
}

// signInExisting は既存ユーザーのサインインを処理する。
// 必要に応じてaccount行のリンクとプロフィールの更新を行い、セッションを発行する。
func (s *Service) signInExisting(ctx context.Context, decision Decision, ident *Identity) (*model.Session, error) {
	userID := decision.UserID

	if decision.LinkAccount {
		if err := s.accountRepo.Create(ctx, newAccount(userID, ident)); err != nil {
			return nil, fmt.Errorf("failed to link account: %w", err)
		}
		slog.Info("provider linked to existing user",
			slog.String("user_id", userID),
			slog.String("provider", ident.Provider),
		)
	}

	if err := s.refreshProfile(ctx, userID, ident); err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordSignIn(SignInResultSuccess)
	slog.Info("existing user signed in",
		slog.String("user_id", userID),
		slog.String("provider", ident.Provider),
	)
	return session, nil
}

// createUserAndSignIn は新規ユーザーとaccountを作成しセッションを発行する。
func (s *Service) createUserAndSignIn(ctx context.Context, ident *Identity) (*model.Session, error) {
	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Name:      ident.Name,
		Email:     ident.Email,
		Image:     ident.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.CreateWithAccount(ctx, newUser, newAccount(newUser.ID, ident)); err != nil {
		return nil, fmt.Errorf("failed to create user and account: %w", err)
	}

	session, err := s.createSession(ctx, newUser.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.recordSignIn(SignInResultNewUser)
	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("email", ident.Email),
		slog.String("provider", ident.Provider),
	)
	return session, nil
}

// refreshProfile はIdPから届いた検証済みプロフィールでユーザー行を更新する。
// 変更が無い場合は書き込まない。
func (s *Service) refreshProfile(ctx context.Context, userID string, ident *Identity) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	changed := false
	if ident.EmailVerified && ident.Email != "" && user.Email != ident.Email {
		user.Email = ident.Email
		changed = true
	}
	if ident.Name != "" && user.Name != ident.Name {
		user.Name = ident.Name
		changed = true
	}
	if ident.Image != "" && user.Image != ident.Image {
		user.Image = ident.Image
		changed = true
	}

	if !changed {
		return nil
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return fmt.Errorf("failed to refresh user profile: %w", err)
	}
	return nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションのuser_idからユーザー行を毎回引き直すため、
// 返されるIDは常にストアのユーザー行と一致する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// ResolveSessionUserID はセッションIDからユーザーIDを解決する。
// セッションが無効・期限切れの場合は空文字列を返す（エラーにしない）。
func (s *Service) ResolveSessionUserID(ctx context.Context, sessionID string) string {
	if sessionID == "" {
		return ""
	}
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil || session == nil {
		return ""
	}
	return session.UserID
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// newAccount はidentityからaccount行を構築する。
func newAccount(userID string, ident *Identity) *model.Account {
	return &model.Account{
		ID:                uuid.New().String(),
		UserID:            userID,
		Provider:          ident.Provider,
		ProviderAccountID: ident.ProviderAccountID,
		Type:              ident.Type,
		AccessToken:       ident.AccessToken,
		RefreshToken:      ident.RefreshToken,
		CreatedAt:         time.Now(),
	}
}

// recordSignIn はメトリクスが設定されている場合のみ記録する。
func (s *Service) recordSignIn(result string) {
	if s.metrics != nil {
		s.metrics.RecordSignIn(result)
	}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
