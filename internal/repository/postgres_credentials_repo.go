package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/careerdock/internal/model"
)

// PostgresCredentialsRepo はPostgreSQLを使用した認証情報リポジトリ。
type PostgresCredentialsRepo struct {
	db *sqlx.DB
}

// NewPostgresCredentialsRepo はPostgresCredentialsRepoを生成する。
func NewPostgresCredentialsRepo(db *sqlx.DB) *PostgresCredentialsRepo {
	return &PostgresCredentialsRepo{db: db}
}

// FindByUserID は指定ユーザーの認証情報を取得する。見つからない場合はnilを返す。
func (r *PostgresCredentialsRepo) FindByUserID(ctx context.Context, userID string) (*model.Credentials, error) {
	creds := &model.Credentials{}
	err := r.db.GetContext(ctx, creds,
		`SELECT id, user_id, encrypted_access_token, encrypted_refresh_token, expiry, created_at, updated_at
		 FROM credentials WHERE user_id = $1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credentials by user ID: %w", err)
	}
	return creds, nil
}

// Upsert はユーザーの認証情報を1文で作成または更新する。
// 同一ユーザーの行が存在する場合はアクセストークンと有効期限を置き換え、
// リフレッシュトークンは新しい値が渡された場合のみ置き換える。
func (r *PostgresCredentialsRepo) Upsert(ctx context.Context, creds *model.Credentials) (*model.Credentials, error) {
	id := creds.ID
	if id == "" {
		id = uuid.New().String()
	}

	stored := &model.Credentials{}
	err := r.db.GetContext(ctx, stored,
		`INSERT INTO credentials (id, user_id, encrypted_access_token, encrypted_refresh_token, expiry, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (user_id) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = COALESCE(EXCLUDED.encrypted_refresh_token, credentials.encrypted_refresh_token),
			expiry = EXCLUDED.expiry,
			updated_at = now()
		 RETURNING id, user_id, encrypted_access_token, encrypted_refresh_token, expiry, created_at, updated_at`,
		id, creds.UserID, creds.EncryptedAccessToken, creds.EncryptedRefreshToken, creds.Expiry,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert credentials: %w", err)
	}
	return stored, nil
}

// compile-time interface check
var _ CredentialsRepository = (*PostgresCredentialsRepo)(nil)
