// Package auth はOAuthハンドシェイク（ログイン、コールバック処理）を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/careerdock/internal/metrics"
	"github.com/hitoshi/careerdock/internal/model"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報とトークンを表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string

	AccessToken  string
	RefreshToken string // プロバイダーが返さなかった場合は空文字
	Expiry       time.Time
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、検証済みのユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// UserDirectory はログイン時に利用するユーザー検索・作成のインターフェース。
type UserDirectory interface {
	FindByProviderID(ctx context.Context, providerID string) (*model.User, error)
	Create(ctx context.Context, email, providerID, displayName string) (*model.User, error)
}

// CredentialSaver は取得したOAuthトークンを保存するインターフェース。
type CredentialSaver interface {
	Save(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) (*model.Credentials, error)
}

// SessionIssuer はセッショントークンを発行するインターフェース。
type SessionIssuer interface {
	Issue(subject string, lifetime time.Duration) (string, time.Time, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionLifetime time.Duration
}

// LoginResult はコールバック処理成功時の結果。
type LoginResult struct {
	User         *model.User
	SessionToken string
	ExpiresAt    time.Time
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	users    UserDirectory
	creds    CredentialSaver
	sessions SessionIssuer
	metrics  metrics.MetricsCollector
	config   ServiceConfig
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	oauth OAuthProvider,
	users UserDirectory,
	creds CredentialSaver,
	sessions SessionIssuer,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		oauth:    oauth,
		users:    users,
		creds:    creds,
		sessions: sessions,
		metrics:  collector,
		config:   config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
// 未登録ユーザーの場合はusersレコードを自動作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*LoginResult, error) {
	const op = "auth.HandleCallback"

	if code == "" {
		return nil, model.NewAuthError(model.KindMissingAuthorizationCode, op,
			errors.New("authorization code is empty"))
	}

	// 1. 認可コードを交換し、IDトークンを検証
	start := time.Now()
	info, err := s.oauth.ExchangeCode(ctx, code)
	s.metrics.RecordProviderLatency(time.Since(start))
	if err != nil {
		if model.KindOf(err) == model.KindUnknown {
			err = model.NewAuthError(model.KindProviderCommunication, op, err)
		}
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	if info.ProviderUserID == "" || info.Email == "" {
		return nil, model.NewAuthError(model.KindIncompleteIdentity, op,
			fmt.Errorf("id token lacks required claims (sub=%t, email=%t)", info.ProviderUserID != "", info.Email != ""))
	}

	// 2. 既存ユーザーを検索し、いなければ作成
	u, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	// 3. OAuthトークンを暗号化して保存
	if _, err := s.creds.Save(ctx, u.ID, info.AccessToken, info.RefreshToken, info.Expiry); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	// 4. セッショントークンを発行
	token, expiresAt, err := s.sessions.Issue(u.ID, s.config.SessionLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &LoginResult{
		User:         u,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

// resolveUser はprovider IDでユーザーを特定する。
// 同時初回ログインで作成が重複した場合は、先に作成されたユーザーを再検索して使う。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	u, err := s.users.FindByProviderID(ctx, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", u.ID),
		)
		return u, nil
	}

	u, err = s.users.Create(ctx, info.Email, info.ProviderUserID, info.Name)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", u.ID),
		)
		return u, nil
	}
	if !model.IsKind(err, model.KindDuplicateUser) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	existing, findErr := s.users.FindByProviderID(ctx, info.ProviderUserID)
	if findErr != nil {
		return nil, fmt.Errorf("failed to find user after duplicate: %w", findErr)
	}
	if existing == nil {
		// emailが別アカウントで使用済み
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Info("concurrent first login resolved to existing user",
		slog.String("user_id", existing.ID),
	)
	return existing, nil
}
