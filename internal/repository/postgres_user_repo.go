package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/careerdock/internal/model"
)

const userColumns = `id, email, provider_id, display_name, active, superuser, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByProviderID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByProviderID(ctx context.Context, providerID string) (*model.User, error) {
	return r.findOne(ctx, "provider ID", `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, providerID)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, by, query string, arg string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by %s: %w", by, err)
	}
	return user, nil
}

// List は作成日時の昇順で最大limit件のユーザーを返す。
func (r *PostgresUserRepo) List(ctx context.Context, limit int) ([]model.User, error) {
	users := []model.User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Create はユーザーを作成する。
// 一意制約違反の場合はDuplicateUserErrorを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (id, email, provider_id, display_name, active, superuser, created_at, updated_at)
		 VALUES (:id, :email, :provider_id, :display_name, :active, :superuser, :created_at, :updated_at)`,
		user,
	)
	if isUniqueViolation(err) {
		return model.NewAuthError(model.KindDuplicateUser, "repository.CreateUser", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はpatchのnilでないフィールドのみを更新する。provider_idは更新しない。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`UPDATE users SET
			email = COALESCE($2, email),
			display_name = COALESCE($3, display_name),
			active = COALESCE($4, active),
			updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Email, patch.DisplayName, patch.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update user %s: %w", id, ErrNotFound)
	}
	if isUniqueViolation(err) {
		return nil, model.NewAuthError(model.KindDuplicateUser, "repository.UpdateUser", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するcredentialsはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to delete user %s: %w", id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
