// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/careerdock/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByProviderID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByProviderID(ctx context.Context, providerID string) (*model.User, error)

	// List は作成日時の昇順で最大limit件のユーザーを返す。
	List(ctx context.Context, limit int) ([]model.User, error)

	// Create はユーザーを作成する。
	// emailまたはprovider_idが既存ユーザーと重複する場合はDuplicateUserErrorを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はpatchのnilでないフィールドのみを更新し、更新後のユーザーを返す。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するcredentialsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// CredentialsRepository は暗号化済みOAuthトークンの永続化インターフェース。
type CredentialsRepository interface {
	// FindByUserID は指定ユーザーの認証情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Credentials, error)

	// Upsert はユーザーの認証情報を作成または更新し、保存後のレコードを返す。
	// EncryptedRefreshTokenがnilの場合は既存のリフレッシュトークンを保持する。
	Upsert(ctx context.Context, creds *model.Credentials) (*model.Credentials, error)
}
