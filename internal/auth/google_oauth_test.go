package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newGoogleTestServer(t *testing.T, user googleUserInfo) *GoogleOAuthProvider {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(googleTokenResponse{
			AccessToken:  "ya29.test",
			RefreshToken: "refresh-test",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		AuthURL:      server.URL + "/auth",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
	})
}

// TestGoogleGetLoginURL_ContainsOIDCScopes は認証URLにOIDCスコープが
// 含まれることを検証する。
func TestGoogleGetLoginURL_ContainsOIDCScopes(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost/callback",
	})

	url := provider.GetLoginURL("test-state")

	if !strings.Contains(url, "scope=openid+email+profile") {
		t.Errorf("url = %q, should contain openid email profile scope", url)
	}
	if !strings.Contains(url, "state=test-state") {
		t.Errorf("url = %q, should contain state", url)
	}
}

// TestGoogleExchangeCode_PassesThroughEmailVerified はemail_verifiedが
// そのままIdentityに反映されることを検証する。
func TestGoogleExchangeCode_PassesThroughEmailVerified(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
	}{
		{name: "検証済み", verified: true},
		{name: "未検証", verified: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newGoogleTestServer(t, googleUserInfo{
				Sub:           "google-sub-1",
				Email:         "user@gmail.com",
				EmailVerified: tt.verified,
				Name:          "Test User",
				Picture:       "https://example.com/pic.png",
			})

			ident, err := provider.ExchangeCode(context.Background(), "code")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if ident.EmailVerified != tt.verified {
				t.Errorf("ident.EmailVerified = %v, want %v", ident.EmailVerified, tt.verified)
			}
			if ident.Provider != "google" || ident.Type != TypeOIDC {
				t.Errorf("ident provider/type = %q/%q, want google/oidc", ident.Provider, ident.Type)
			}
			if ident.ProviderAccountID != "google-sub-1" {
				t.Errorf("ident.ProviderAccountID = %q, want google-sub-1", ident.ProviderAccountID)
			}
			if ident.RefreshToken != "refresh-test" {
				t.Errorf("ident.RefreshToken = %q, want refresh-test", ident.RefreshToken)
			}
		})
	}
}
