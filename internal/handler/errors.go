package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/careerdock/internal/middleware"
	"github.com/hitoshi/careerdock/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if statusCode == http.StatusUnauthorized {
		middleware.WriteUnauthorized(w, apiErr)
		return
	}
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// AuthErrorは種別で、APIErrorはコードで分岐し、それ以外は500として詳細をログのみに残す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	status, apiErr := mapErrorKind(model.KindOf(err))
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
	} else {
		slog.WarnContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
	}
	writeAPIErrorResponse(w, status, apiErr)
}

// mapErrorKind はエラー種別をHTTPステータスとクライアント向けエラーに変換する。
func mapErrorKind(kind model.ErrorKind) (int, *model.APIError) {
	switch kind {
	case model.KindMissingAuthorizationCode:
		return http.StatusBadRequest, model.NewMissingCodeError()
	case model.KindInvalidState:
		return http.StatusBadRequest, model.NewInvalidStateError()
	case model.KindIncompleteIdentity:
		return http.StatusBadRequest, model.NewIncompleteIdentityError()
	case model.KindInvalidToken:
		return http.StatusUnauthorized, model.NewInvalidTokenError()
	case model.KindDuplicateUser:
		return http.StatusConflict, model.NewDuplicateUserError()
	case model.KindProviderCommunication:
		return http.StatusInternalServerError, model.NewAuthenticationFailedError()
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingCode, model.ErrCodeInvalidState,
		model.ErrCodeIncompleteIdentity, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateUser:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
