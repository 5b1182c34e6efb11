// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind は認証コアのエラー種別を表す。
// 呼び出し側はメッセージ文字列ではなく種別で分岐する。
type ErrorKind string

// 定義済みエラー種別
const (
	KindUnknown                  ErrorKind = ""
	KindConfiguration            ErrorKind = "ConfigurationError"
	KindMissingAuthorizationCode ErrorKind = "MissingAuthorizationCode"
	KindInvalidState             ErrorKind = "InvalidOAuthState"
	KindProviderCommunication    ErrorKind = "ProviderCommunicationError"
	KindIncompleteIdentity       ErrorKind = "IncompleteIdentityError"
	KindInvalidToken             ErrorKind = "InvalidTokenError"
	KindCrypto                   ErrorKind = "CryptoError"
	KindDuplicateUser            ErrorKind = "DuplicateUserError"
)

// AuthError は種別付きのエラー。Opは失敗した操作名、Errは原因。
type AuthError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError は種別付きエラーを生成する。
func NewAuthError(kind ErrorKind, op string, err error) *AuthError {
	return &AuthError{Kind: kind, Op: op, Err: err}
}

// KindOf はエラーチェーン中の最初のAuthErrorの種別を返す。
// AuthErrorを含まない場合はKindUnknownを返す。
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

// IsKind はエラーが指定種別のAuthErrorを含むかを判定する。
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeMissingCode          = "MISSING_AUTHORIZATION_CODE"
	ErrCodeInvalidState         = "INVALID_OAUTH_STATE"
	ErrCodeIncompleteIdentity   = "INCOMPLETE_IDENTITY"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeDuplicateUser        = "DUPLICATE_USER"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeCSRFValidation       = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidTokenError はセッションが無効または期限切れの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "セッションが無効か期限切れです。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewMissingCodeError は認可コードが指定されていない場合のエラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCode,
		Message:  "認可コードが指定されていません。",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewInvalidStateError はOAuthのstateが一致しない場合のエラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "ログインリクエストの検証に失敗しました。",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewIncompleteIdentityError はIdPから必要な情報が得られなかった場合のエラーを生成する。
func NewIncompleteIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteIdentity,
		Message:  "Googleアカウントから必要な情報を取得できませんでした。",
		Category: "auth",
		Action:   "メールアドレスとプロフィールへのアクセスを許可してログインしてください。",
	}
}

// NewAuthenticationFailedError は認証処理の失敗を表すエラーを生成する。
// 内部の詳細はクライアントに返さない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewDuplicateUserError はメールアドレス等が既に使用されている場合のエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は認証済みだが操作の権限がない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewCSRFValidationError はダブルサブミットのCSRF検証に失敗した場合のエラーを生成する。
func NewCSRFValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFValidation,
		Message:  "リクエストの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過時のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
