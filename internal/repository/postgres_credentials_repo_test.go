package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/careerdock/internal/model"
)

// PostgresCredentialsRepoはCredentialsRepositoryインターフェースを満たすことを検証
func TestPostgresCredentialsRepo_ImplementsInterface(t *testing.T) {
	var _ CredentialsRepository = (*PostgresCredentialsRepo)(nil)
}

func strPtr(s string) *string { return &s }

func TestPostgresCredentialsRepo_Upsert_CreatesThenReplaces(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresCredentialsRepo(db)
	ctx := context.Background()

	user := newTestUser("creds@x.com", "g-creds")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	first, err := repo.Upsert(ctx, &model.Credentials{
		UserID:                user.ID,
		EncryptedAccessToken:  "enc-access-1",
		EncryptedRefreshToken: strPtr("enc-refresh-1"),
		Expiry:                expiry,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if first.ID == "" {
		t.Error("expected generated ID")
	}

	second, err := repo.Upsert(ctx, &model.Credentials{
		UserID:               user.ID,
		EncryptedAccessToken: "enc-access-2",
		Expiry:               expiry.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed on update: got %q, want %q", second.ID, first.ID)
	}
	if second.EncryptedAccessToken != "enc-access-2" {
		t.Errorf("EncryptedAccessToken = %q, want %q", second.EncryptedAccessToken, "enc-access-2")
	}
	if second.EncryptedRefreshToken == nil || *second.EncryptedRefreshToken != "enc-refresh-1" {
		t.Errorf("EncryptedRefreshToken = %v, want existing value kept", second.EncryptedRefreshToken)
	}
	if !second.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Errorf("Expiry = %v, want %v", second.Expiry, expiry.Add(time.Hour))
	}

	var count int
	if err := db.Get(&count, `SELECT count(*) FROM credentials WHERE user_id = $1`, user.ID); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 1 {
		t.Errorf("credentials rows = %d, want 1", count)
	}
}

func TestPostgresCredentialsRepo_FindByUserID_NotFound_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresCredentialsRepo(db)

	got, err := repo.FindByUserID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindByUserID() = %+v, want nil", got)
	}
}

func TestPostgresCredentialsRepo_DeletedWithUser(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresCredentialsRepo(db)
	ctx := context.Background()

	user := newTestUser("cascade@x.com", "g-cascade")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Upsert(ctx, &model.Credentials{
		UserID:               user.ID,
		EncryptedAccessToken: "enc",
		Expiry:               time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := users.DeleteByID(ctx, user.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}

	got, err := repo.FindByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByUserID() error = %v", err)
	}
	if got != nil {
		t.Error("credentials should be removed with the user")
	}
}
