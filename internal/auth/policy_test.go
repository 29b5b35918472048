package auth

import (
	"testing"

	"github.com/Rettend/todoman/internal/model"
)

// TestDecide_DeniesWithoutEmail はメール無しのidentityが常に拒否されることを検証する。
func TestDecide_DeniesWithoutEmail(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{Provider: "github", Type: TypeOAuth, Email: ""},
	})

	if decision.Kind != DecisionDenyNoEmail {
		t.Errorf("decision.Kind = %d, want DecisionDenyNoEmail", decision.Kind)
	}
}

// TestDecide_DeniesUnverifiedEmail は未検証メールのOAuth/OIDCサインインが
// 既存accountの有無にかかわらず拒否されることを検証する。
func TestDecide_DeniesUnverifiedEmail(t *testing.T) {
	tests := []struct {
		name    string
		account *model.Account
	}{
		{name: "既存accountなし", account: nil},
		{name: "既存accountあり", account: &model.Account{ID: "acc-1", UserID: "user-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(PolicyInput{
				Identity: &Identity{
					Provider:      "github",
					Type:          TypeOAuth,
					Email:         "user@example.com",
					EmailVerified: false,
				},
				Account: tt.account,
			})

			if decision.Kind != DecisionDenyUnverified {
				t.Errorf("decision.Kind = %d, want DecisionDenyUnverified", decision.Kind)
			}
		})
	}
}

// TestDecide_ExistingAccountSignsIn は(provider, provider_account_id)が一致する
// accountの所有者としてサインインすることを検証する。
func TestDecide_ExistingAccountSignsIn(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{
			Provider:          "github",
			Type:              TypeOAuth,
			ProviderAccountID: "12345",
			Email:             "user@example.com",
			EmailVerified:     true,
		},
		Account: &model.Account{ID: "acc-1", UserID: "user-1", Provider: "github"},
	})

	if decision.Kind != DecisionSignIn {
		t.Fatalf("decision.Kind = %d, want DecisionSignIn", decision.Kind)
	}
	if decision.UserID != "user-1" {
		t.Errorf("decision.UserID = %q, want %q", decision.UserID, "user-1")
	}
	if decision.LinkAccount {
		t.Error("LinkAccount should be false for existing account sign-in")
	}
}

// TestDecide_SessionUserLinksNewProvider はログイン中ユーザー自身への
// プロバイダー追加がリンク付きサインインになることを検証する。
func TestDecide_SessionUserLinksNewProvider(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{
			Provider:      "google",
			Type:          TypeOIDC,
			Email:         "user@example.com",
			EmailVerified: true,
		},
		EmailUser:     &model.User{ID: "user-1", Email: "user@example.com"},
		SessionUserID: "user-1",
	})

	if decision.Kind != DecisionSignIn {
		t.Fatalf("decision.Kind = %d, want DecisionSignIn", decision.Kind)
	}
	if !decision.LinkAccount {
		t.Error("LinkAccount should be true when session user adds a provider")
	}
	if decision.UserID != "user-1" {
		t.Errorf("decision.UserID = %q, want %q", decision.UserID, "user-1")
	}
}

// TestDecide_EmailUserWithSameProviderSignsIn は同一メールユーザーが
// 同providerのaccountを既に持つ場合にサインインできることを検証する。
func TestDecide_EmailUserWithSameProviderSignsIn(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{
			Provider:      "github",
			Type:          TypeOAuth,
			Email:         "user@example.com",
			EmailVerified: true,
		},
		EmailUser:            &model.User{ID: "user-1", Email: "user@example.com"},
		EmailUserHasProvider: true,
	})

	if decision.Kind != DecisionSignIn {
		t.Fatalf("decision.Kind = %d, want DecisionSignIn", decision.Kind)
	}
	if decision.LinkAccount {
		t.Error("LinkAccount should be false when provider is already linked")
	}
}

// TestDecide_ForeignEmailNewProviderPromptsLink は他人のメールを持つ
// 新providerでのサインインがリンク確認に誘導され、
// 重複ユーザーを作成しないことを検証する。
func TestDecide_ForeignEmailNewProviderPromptsLink(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{
			Provider:      "google",
			Type:          TypeOIDC,
			Email:         "user@example.com",
			EmailVerified: true,
		},
		EmailUser: &model.User{ID: "user-1", Email: "user@example.com"},
		// 未ログイン、同providerのリンクも無し
	})

	if decision.Kind != DecisionLinkPrompt {
		t.Errorf("decision.Kind = %d, want DecisionLinkPrompt", decision.Kind)
	}
}

// TestDecide_UnknownEmailCreatesUser は未知のメールで新規ユーザー作成に
// なることを検証する。
func TestDecide_UnknownEmailCreatesUser(t *testing.T) {
	decision := Decide(PolicyInput{
		Identity: &Identity{
			Provider:      "github",
			Type:          TypeOAuth,
			Email:         "new@example.com",
			EmailVerified: true,
		},
	})

	if decision.Kind != DecisionCreateUser {
		t.Errorf("decision.Kind = %d, want DecisionCreateUser", decision.Kind)
	}
}

// TestLinkPromptPath_EncodesParams はリンク確認パスにメールとプロバイダーが
// エンコードされることを検証する。
func TestLinkPromptPath_EncodesParams(t *testing.T) {
	path := linkPromptPath("a+b@example.com", "google")

	if path == "" {
		t.Fatal("expected non-empty path")
	}
	want := "/auth/link-account-prompt?email=a%2Bb%40example.com&error=AccountExistsSignInToLink&providerToLink=google"
	if path != want {
		t.Errorf("linkPromptPath = %q, want %q", path, want)
	}
}
