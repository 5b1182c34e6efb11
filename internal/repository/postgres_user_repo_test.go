package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/careerdock/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "other error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestUser(email, providerID string) *model.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.User{
		ID:          uuid.New().String(),
		Email:       email,
		ProviderID:  providerID,
		DisplayName: "Test User",
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresUserRepo_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	user := newTestUser("a@x.com", "g-123")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	lookups := map[string]func() (*model.User, error){
		"FindByID":         func() (*model.User, error) { return repo.FindByID(ctx, user.ID) },
		"FindByEmail":      func() (*model.User, error) { return repo.FindByEmail(ctx, "a@x.com") },
		"FindByProviderID": func() (*model.User, error) { return repo.FindByProviderID(ctx, "g-123") },
	}
	for name, lookup := range lookups {
		t.Run(name, func(t *testing.T) {
			got, err := lookup()
			if err != nil {
				t.Fatalf("%s() error = %v", name, err)
			}
			if got == nil {
				t.Fatalf("%s() returned nil", name)
			}
			if got.ID != user.ID || got.Email != user.Email || got.ProviderID != user.ProviderID || !got.Active {
				t.Errorf("%s() = %+v, want %+v", name, got, user)
			}
		})
	}
}

func TestPostgresUserRepo_Find_NotFound_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	got, err := repo.FindByProviderID(ctx, "g-missing")
	if err != nil {
		t.Fatalf("FindByProviderID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByProviderID() = %+v, want nil", got)
	}

	got, err = repo.FindByID(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByID() = %+v, want nil", got)
	}
}

func TestPostgresUserRepo_Create_Duplicate_ReturnsDuplicateUserError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	if err := repo.Create(ctx, newTestUser("dup@x.com", "g-dup")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name string
		user *model.User
	}{
		{name: "same email", user: newTestUser("dup@x.com", "g-other")},
		{name: "same provider id", user: newTestUser("other@x.com", "g-dup")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if !model.IsKind(err, model.KindDuplicateUser) {
				t.Errorf("Create() error kind = %q, want %q", model.KindOf(err), model.KindDuplicateUser)
			}
		})
	}
}

func TestPostgresUserRepo_Update_AppliesOnlyPatchedFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	user := newTestUser("before@x.com", "g-update")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	name := "After"
	updated, err := repo.Update(ctx, user.ID, model.UserPatch{DisplayName: &name})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.DisplayName != "After" {
		t.Errorf("DisplayName = %q, want %q", updated.DisplayName, "After")
	}
	if updated.Email != "before@x.com" {
		t.Errorf("Email = %q, want unchanged %q", updated.Email, "before@x.com")
	}
	if updated.ProviderID != "g-update" {
		t.Errorf("ProviderID = %q, want unchanged %q", updated.ProviderID, "g-update")
	}
	if !updated.Active {
		t.Error("Active should be unchanged")
	}

	inactive := false
	updated, err = repo.Update(ctx, user.ID, model.UserPatch{Active: &inactive})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Active {
		t.Error("Active should be false after update")
	}
}

func TestPostgresUserRepo_Update_EmailCollision_ReturnsDuplicateUserError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	first := newTestUser("first@x.com", "g-first")
	second := newTestUser("second@x.com", "g-second")
	for _, u := range []*model.User{first, second} {
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	email := "first@x.com"
	_, err := repo.Update(ctx, second.ID, model.UserPatch{Email: &email})
	if !model.IsKind(err, model.KindDuplicateUser) {
		t.Errorf("Update() error kind = %q, want %q", model.KindOf(err), model.KindDuplicateUser)
	}
}

func TestPostgresUserRepo_Update_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)

	name := "x"
	_, err := repo.Update(context.Background(), uuid.New().String(), model.UserPatch{DisplayName: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresUserRepo_DeleteByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	user := newTestUser("delete@x.com", "g-delete")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.DeleteByID(ctx, user.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	got, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got != nil {
		t.Error("user should be deleted")
	}

	if err := repo.DeleteByID(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteByID() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresUserRepo_List_OrderedAndLimited(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, email := range []string{"first@x.com", "second@x.com", "third@x.com"} {
		u := newTestUser(email, "g-list-"+email)
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		u.Superuser = i == 0
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create(%s) error = %v", email, err)
		}
	}

	got, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d users, want 2", len(got))
	}
	if got[0].Email != "first@x.com" || got[1].Email != "second@x.com" {
		t.Errorf("List() order = [%s %s]", got[0].Email, got[1].Email)
	}
	if !got[0].Superuser || got[1].Superuser {
		t.Errorf("superuser flags = [%v %v], want [true false]", got[0].Superuser, got[1].Superuser)
	}
}

func TestPostgresUserRepo_List_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)

	got, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List() = %v, want empty slice", got)
	}
}
