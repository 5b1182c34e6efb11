package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/careerdock/internal/middleware"
	"github.com/hitoshi/careerdock/internal/model"
)

const maxUserBodyBytes = 1 << 16

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// List は管理用のユーザー一覧を返す。件数はサービス側で制限する。
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u *model.User, patch model.UserPatch) (*model.User, error)
	// Withdraw はユーザーを削除する。credentialsは外部キーのカスケードで削除される。
	Withdraw(ctx context.Context, userID string) error
}

// CredentialLoader は保存済みOAuthトークンを読み出すインターフェース。
type CredentialLoader interface {
	Load(ctx context.Context, userID string) (*model.DecryptedCredentials, error)
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service     UserServiceInterface
	credentials CredentialLoader
	config      UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, credentials CredentialLoader, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		service:     service,
		credentials: credentials,
		config:      config,
	}
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
	Superuser   bool      `json:"superuser"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Active:      u.Active,
		Superuser:   u.Superuser,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// updateUserRequest はPATCH /api/users/me, PUT /api/users/{userID}のリクエストボディ。
// activeはスーパーユーザーのPUTでのみ受け付ける。
type updateUserRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Active      *bool   `json:"active"`
}

// googleConnectionResponse はGoogle連携状態のレスポンス。トークンそのものは含めない。
type googleConnectionResponse struct {
	Connected       bool       `json:"connected"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
}

// Me は現在のログインユーザー情報を返す。
// GET /users/me, GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UpdateMe はログインユーザーのメールアドレスと表示名を更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	patch, reason := decodeUserPatch(r)
	if reason == "" && patch.Active != nil {
		reason = "active cannot be changed"
	}
	if reason != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}

	updated, err := h.service.Update(r.Context(), u, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// List は全ユーザーの一覧を返す。スーパーユーザーのみ実行できる。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	if !u.Superuser {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateUser は指定ユーザーを更新する。
// 本人またはスーパーユーザーのみ実行でき、activeの変更はスーパーユーザーに限る。
// PUT /api/users/{userID}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	targetID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(targetID); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid user id"))
		return
	}
	if targetID != u.ID && !u.Superuser {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	patch, reason := decodeUserPatch(r)
	if reason != "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return
	}
	if patch.Active != nil && !u.Superuser {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		return
	}

	target := u
	if targetID != u.ID {
		found, err := h.service.FindByID(r.Context(), targetID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if found == nil {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
			return
		}
		target = found
	}

	updated, err := h.service.Update(r.Context(), target, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "user updated",
		slog.String("user_id", updated.ID),
		slog.String("updated_by", u.ID),
	)
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// Withdraw はユーザーの退会処理を実行し、セッションCookieを削除する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain, h.config.CookieSecure)
	w.WriteHeader(http.StatusNoContent)
}

// GoogleConnection はGoogleアカウント連携の状態を返す。
// GET /api/users/me/google
func (h *UserHandler) GoogleConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	creds, err := h.credentials.Load(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := googleConnectionResponse{}
	if creds != nil {
		expiry := creds.Expiry.UTC()
		resp.Connected = true
		resp.ExpiresAt = &expiry
		resp.HasRefreshToken = creds.RefreshToken != ""
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeUserPatch はリクエストボディを検証してUserPatchに変換する。
// 不正な場合は理由を返す。
func decodeUserPatch(r *http.Request) (model.UserPatch, string) {
	var req updateUserRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxUserBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return model.UserPatch{}, "empty body"
		}
		return model.UserPatch{}, "malformed JSON"
	}

	var patch model.UserPatch
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil || strings.Contains(email, "<") {
			return model.UserPatch{}, "invalid email"
		}
		patch.Email = &email
	}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if utf8.RuneCountInString(name) > model.MaxDisplayNameLength {
			return model.UserPatch{}, "display_name too long"
		}
		patch.DisplayName = &name
	}
	patch.Active = req.Active
	return patch, ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
