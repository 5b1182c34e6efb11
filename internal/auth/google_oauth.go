package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/careerdock/internal/model"
)

const (
	defaultGoogleIssuer  = "https://accounts.google.com"
	defaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	defaultProviderTimeout = 10 * time.Second
)

// 常に要求する識別用スコープ
var identityScopes = []string{
	oidc.ScopeOpenID,
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// ExtraScopes は識別用スコープに加えて要求するプロダクト用スコープ。
	ExtraScopes []string
	// Timeout はトークン交換と公開鍵取得のHTTPタイムアウト。0の場合は10秒。
	Timeout time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	JWKSURL  string
	Issuer   string
}

// GoogleOAuthProvider はGoogle OAuth 2.0 / OpenID Connectによる認証を提供する。
// IDトークンはGoogleの公開鍵とクライアントIDで検証する。
type GoogleOAuthProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	httpClient   *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
// 公開鍵は初回検証時に遅延取得されるため、ここではネットワークアクセスを行わない。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	if config.JWKSURL == "" {
		config.JWKSURL = defaultGoogleJWKSURL
	}
	if config.Issuer == "" {
		config.Issuer = defaultGoogleIssuer
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultProviderTimeout
	}

	httpClient := &http.Client{Timeout: config.Timeout}

	scopes := append([]string{}, identityScopes...)
	scopes = append(scopes, config.ExtraScopes...)

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), httpClient), config.JWKSURL)

	return &GoogleOAuthProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		verifier: oidc.NewVerifier(config.Issuer, keySet, &oidc.Config{
			ClientID: config.ClientID,
		}),
		httpClient: httpClient,
	}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// リフレッシュトークンを得るためにオフラインアクセスを要求する。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// idTokenClaims はIDトークンから取り出すクレーム。
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExchangeCode は認可コードをトークンに交換し、IDトークンを検証してユーザー情報を返す。
// 通信エラーと検証エラーはいずれもProviderCommunicationErrorとして返す。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	const op = "auth.ExchangeCode"

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	// 1. 認可コードをトークンに交換
	tok, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, model.NewAuthError(model.KindProviderCommunication, op,
			fmt.Errorf("failed to exchange token: %w", err))
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, model.NewAuthError(model.KindProviderCommunication, op,
			errors.New("id_token missing from token response"))
	}

	// 2. IDトークンの署名・発行者・audienceを検証
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, model.NewAuthError(model.KindProviderCommunication, op,
			fmt.Errorf("failed to verify id token: %w", err))
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, model.NewAuthError(model.KindProviderCommunication, op,
			fmt.Errorf("failed to parse id token claims: %w", err))
	}

	return &OAuthUserInfo{
		ProviderUserID: idToken.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		Expiry:         tok.Expiry,
	}, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
