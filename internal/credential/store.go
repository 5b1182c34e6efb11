// Package credential は外部OAuthトークンを暗号化して保存するCredential Storeを提供する。
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/careerdock/internal/model"
	"github.com/hitoshi/careerdock/internal/repository"
)

// TokenCipher はトークンの暗号化・復号を行うインターフェース。
// token.Cipherが満たす。
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Store はユーザーごとのOAuthトークンを暗号化して永続化する。
// 平文のトークンは保存しない。
type Store struct {
	repo   repository.CredentialsRepository
	cipher TokenCipher
}

// NewStore はStoreを生成する。
func NewStore(repo repository.CredentialsRepository, cipher TokenCipher) *Store {
	return &Store{repo: repo, cipher: cipher}
}

// Save はアクセストークンとリフレッシュトークンを暗号化して保存する。
// refreshTokenが空文字の場合は未取得として扱い、既存のリフレッシュトークンを保持する。
func (s *Store) Save(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) (*model.Credentials, error) {
	encAccess, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	var encRefresh *string
	if refreshToken != "" {
		enc, err := s.cipher.Encrypt(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		encRefresh = &enc
	}

	stored, err := s.repo.Upsert(ctx, &model.Credentials{
		UserID:                userID,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		Expiry:                expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return stored, nil
}

// Load は保存済みのトークンを復号して返す。保存されていない場合はnilを返す。
func (s *Store) Load(ctx context.Context, userID string) (*model.DecryptedCredentials, error) {
	creds, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if creds == nil {
		return nil, nil
	}

	access, err := s.cipher.Decrypt(creds.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	var refresh string
	if creds.EncryptedRefreshToken != nil {
		refresh, err = s.cipher.Decrypt(*creds.EncryptedRefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}

	return &model.DecryptedCredentials{
		UserID:       creds.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       creds.Expiry,
	}, nil
}
