// Package model はドメインモデルを定義する。
package model

import "time"

// MaxDisplayNameLength は表示名の上限文字数。users.display_nameのVARCHAR長と一致させる。
const MaxDisplayNameLength = 255

// User はサービス利用ユーザーを表す。
// 外部IdP（Google）のアカウントと1:1で紐付き、ProviderIDは一度設定したら変更しない。
// Superuserは管理用の権限で、DBで直接付与する。
type User struct {
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	ProviderID  string    `db:"provider_id" json:"provider_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Active      bool      `db:"active" json:"active"`
	Superuser   bool      `db:"superuser" json:"superuser"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// UserPatch はユーザー更新時の部分更新内容を表す。
// nilのフィールドは変更しない。ProviderIDは更新対象に含めない。
type UserPatch struct {
	Email       *string
	DisplayName *string
	Active      *bool
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.DisplayName == nil && p.Active == nil
}

// Credentials はユーザーごとの外部OAuthトークン（暗号化済み）を表す。
// ユーザー1人につき0件または1件。トークンは平文で保持しない。
type Credentials struct {
	ID                    string    `db:"id"`
	UserID                string    `db:"user_id"`
	EncryptedAccessToken  string    `db:"encrypted_access_token"`
	EncryptedRefreshToken *string   `db:"encrypted_refresh_token"`
	Expiry                time.Time `db:"expiry"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// DecryptedCredentials は復号済みのOAuthトークン。
// 呼び出し側が明示的にロードした場合のみ生成され、永続化されない。
type DecryptedCredentials struct {
	UserID       string
	AccessToken  string
	RefreshToken string // 未取得の場合は空文字
	Expiry       time.Time
}
