package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/careerdock/internal/model"
)

// Signer はセッショントークン（HS256署名のJWT）を発行・検証する。
// サーバー側にセッション状態は持たず、失効は有効期限のみで行う。
type Signer struct {
	secret []byte
	now    func() time.Time
}

// SignerOption はSignerの設定を変更する。
type SignerOption func(*Signer)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner は署名用シークレットからSignerを生成する。
func NewSigner(secret string, opts ...SignerOption) (*Signer, error) {
	if secret == "" {
		return nil, model.NewAuthError(model.KindConfiguration, "token.NewSigner", errors.New("session secret is not configured"))
	}

	s := &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue はsubjectを主体とするセッショントークンを発行する。
// expは常にiat + lifetimeとなる。
func (s *Signer) Issue(subject string, lifetime time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if lifetime <= 0 {
		return "", time.Time{}, fmt.Errorf("invalid session lifetime: %s", lifetime)
	}

	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(lifetime)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify はセッショントークンを検証し、subjectを返す。
// 署名不一致、形式不正、subject欠落、期限切れはInvalidTokenErrorとなる。
// 有効期限は排他的に扱い、exp時刻ちょうどのトークンは無効とする。
func (s *Signer) Verify(signed string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(signed, claims,
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", model.NewAuthError(model.KindInvalidToken, "token.Verify", err)
	}

	if !s.now().Before(claims.ExpiresAt.Time) {
		return "", model.NewAuthError(model.KindInvalidToken, "token.Verify", jwt.ErrTokenExpired)
	}
	if claims.Subject == "" {
		return "", model.NewAuthError(model.KindInvalidToken, "token.Verify", errors.New("token has no subject"))
	}

	return claims.Subject, nil
}
