// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/careerdock/internal/metrics"
	"github.com/hitoshi/careerdock/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "access_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストにユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// TokenVerifier はセッショントークンを検証し、subject（ユーザーID）を返す。
// token.Signerが満たす。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserFinder はユーザーIDからユーザーを取得する読み取り専用インターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewSessionMiddleware はリクエストのセッショントークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークン取得順: Authorizationヘッダー（Bearer）→ access_token Cookie。
// トークンがない場合は未認証のまま次のハンドラーへ渡す。
// トークンが不正、またはユーザーが存在しない・無効の場合は401を返す。
func NewSessionMiddleware(verifier TokenVerifier, users UserFinder, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(raw)
			if err != nil {
				slog.Debug("session token rejected",
					slog.String("error", err.Error()),
				)
				collector.RecordSessionRejected(metrics.RejectInvalidToken)
				WriteUnauthorized(w, model.NewInvalidTokenError())
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to find session user",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				collector.RecordSessionRejected(metrics.RejectUnknownUser)
				WriteUnauthorized(w, model.NewInvalidTokenError())
				return
			}
			if !user.Active {
				collector.RecordSessionRejected(metrics.RejectInactiveUser)
				WriteUnauthorized(w, model.NewInvalidTokenError())
				return
			}

			setLoggedUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireUser は認証済みユーザーがいないリクエストに401を返すミドルウェア。
// NewSessionMiddlewareの後に配置する。
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			WriteUnauthorized(w, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest はAuthorizationヘッダー、次にCookieからトークンを取り出す。
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過し、有効なトークンを持つリクエストでのみ値を返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, ok := UserFromContext(ctx)
	if !ok || user.ID == "" {
		return "", errors.New("user not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
