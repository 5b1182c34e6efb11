// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/careerdock/internal/auth"
	"github.com/hitoshi/careerdock/internal/metrics"
	"github.com/hitoshi/careerdock/internal/middleware"
	"github.com/hitoshi/careerdock/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.LoginResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	LandingPath     string // ログイン成功後のリダイレクト先
	CookieDomain    string
	CookieSecure    bool
	SessionLifetime time.Duration // セッションCookieの有効期間
	StateCheck      bool          // OAuth stateの検証を行うか
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.LandingPath == "" {
		config.LandingPath = "/"
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/login, GET /auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var state string
	if h.config.StateCheck {
		var err error
		state, err = generateState()
		if err != nil {
			slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}

		// stateをCookieに保存（CSRF対策）
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   oauthStateMaxAge,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.config.StateCheck {
		if !h.validState(r) {
			h.metrics.RecordLogin(metrics.LoginInvalidState)
			handleServiceError(w, r, model.NewAuthError(model.KindInvalidState, "auth.Callback", nil))
			return
		}
		h.clearCookie(w, oauthStateCookie, "")
	}

	result, err := h.service.HandleCallback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.metrics.RecordLogin(loginResultLabel(err))
		handleServiceError(w, r, err)
		return
	}
	h.metrics.RecordLogin(metrics.LoginSuccess)

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.InfoContext(r.Context(), "login succeeded", slog.String("user_id", result.User.ID))
	http.Redirect(w, r, h.config.LandingPath, http.StatusSeeOther)
}

// Logout はセッションCookieを破棄してトップページへリダイレクトする。
// トークンはステートレスなため、サーバー側で破棄するものはない。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) validState(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) == 1
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	clearCookie(w, name, domain, h.config.CookieSecure)
}

// clearCookie は指定したCookieを削除する。
func clearCookie(w http.ResponseWriter, name, domain string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loginResultLabel はログイン失敗の原因をメトリクスのラベルに変換する。
func loginResultLabel(err error) string {
	switch model.KindOf(err) {
	case model.KindMissingAuthorizationCode:
		return metrics.LoginMissingCode
	case model.KindInvalidState:
		return metrics.LoginInvalidState
	case model.KindProviderCommunication:
		return metrics.LoginProviderError
	case model.KindIncompleteIdentity:
		return metrics.LoginIncompleteIdentity
	default:
		return metrics.LoginError
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
