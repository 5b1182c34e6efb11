// Package user はユーザー管理のドメインロジック（User Directory）を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/careerdock/internal/model"
	"github.com/hitoshi/careerdock/internal/repository"
	"github.com/hitoshi/careerdock/internal/security"
)

// listLimit はListが返す最大件数。
const listLimit = 100

// Directory はユーザーの検索・作成・更新・退会を提供する。
// 一意性はDBの制約で保証し、アプリケーション側でロックは取らない。
// 表示名はマークアップを除去したプレーンテキストとして保存する。
type Directory struct {
	repo      repository.UserRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewDirectory はDirectoryの新しいインスタンスを生成する。
func NewDirectory(repo repository.UserRepository) *Directory {
	return &Directory{
		repo:      repo,
		sanitizer: security.NewTextSanitizer(),
		now:       time.Now,
	}
}

// FindByProviderID は外部IdPのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (d *Directory) FindByProviderID(ctx context.Context, providerID string) (*model.User, error) {
	return d.repo.FindByProviderID(ctx, providerID)
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (d *Directory) FindByID(ctx context.Context, id string) (*model.User, error) {
	return d.repo.FindByID(ctx, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (d *Directory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.repo.FindByEmail(ctx, email)
}

// List は管理用に最大100件のユーザーを作成日時順で返す。
func (d *Directory) List(ctx context.Context) ([]model.User, error) {
	return d.repo.List(ctx, listLimit)
}

// Create は有効状態の新規ユーザーを作成する。
// emailまたはproviderIDが既存ユーザーと重複する場合はDuplicateUserErrorを返す。
func (d *Directory) Create(ctx context.Context, email, providerID, displayName string) (*model.User, error) {
	if email == "" || providerID == "" {
		return nil, model.NewAuthError(model.KindIncompleteIdentity, "user.Create",
			errors.New("email and provider ID are required"))
	}

	now := d.now().UTC()
	u := &model.User{
		ID:          uuid.New().String(),
		Email:       email,
		ProviderID:  providerID,
		DisplayName: d.displayName(displayName),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	slog.Info("user created",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Update はpatchのnilでないフィールドのみをユーザーに適用する。
// ProviderIDは変更しない。更新対象がない場合はuserをそのまま返す。
func (d *Directory) Update(ctx context.Context, u *model.User, patch model.UserPatch) (*model.User, error) {
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	if patch.IsEmpty() {
		return u, nil
	}
	if patch.DisplayName != nil {
		name := d.displayName(*patch.DisplayName)
		patch.DisplayName = &name
	}

	updated, err := d.repo.Update(ctx, u.ID, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.NewUserNotFoundError()
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// displayName はマークアップを除去し、上限文字数で切り詰める。
func (d *Directory) displayName(raw string) string {
	name := d.sanitizer.Sanitize(raw)
	if utf8.RuneCountInString(name) <= model.MaxDisplayNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:model.MaxDisplayNameLength])
}

// Withdraw はユーザーの退会処理を実行する。
// credentialsはCASCADE削除される。
func (d *Directory) Withdraw(ctx context.Context, userID string) error {
	u, err := d.repo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("withdrawing user",
		slog.String("user_id", userID),
	)

	if err := d.repo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawn",
		slog.String("user_id", userID),
	)
	return nil
}
