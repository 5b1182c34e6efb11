// Package token は外部OAuthトークンの暗号化とセッショントークンの発行・検証を提供する。
package token

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/hitoshi/careerdock/internal/model"
)

// hkdfInfo は鍵導出時のコンテキスト文字列。変更すると既存の暗号文は復号できなくなる。
const hkdfInfo = "careerdock/credentials/v1"

// Cipher は保存用トークンの対称暗号化を行う。
// XChaCha20-Poly1305で暗号化し、改ざんされた暗号文は認証タグ不一致として検出する。
type Cipher struct {
	key []byte
}

// NewCipher は設定された暗号化キーからCipherを生成する。
// キーは任意長の秘密文字列で、HKDF-SHA256で32バイトの鍵に導出する。
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, model.NewAuthError(model.KindCrypto, "token.NewCipher", errors.New("encryption key is not configured"))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, model.NewAuthError(model.KindCrypto, "token.NewCipher", fmt.Errorf("failed to derive key: %w", err))
	}

	return &Cipher{key: key}, nil
}

// Encrypt は平文を暗号化し、base64url(nonce || ciphertext) 形式で返す。
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", model.NewAuthError(model.KindCrypto, "token.Encrypt", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", model.NewAuthError(model.KindCrypto, "token.Encrypt", fmt.Errorf("failed to generate nonce: %w", err))
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptで生成した暗号文を復号する。
// 形式不正、別の鍵による暗号文、改ざんはすべてCryptoErrorとなる。
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	aead, err := c.aead()
	if err != nil {
		return "", model.NewAuthError(model.KindCrypto, "token.Decrypt", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", model.NewAuthError(model.KindCrypto, "token.Decrypt", fmt.Errorf("malformed ciphertext: %w", err))
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", model.NewAuthError(model.KindCrypto, "token.Decrypt", errors.New("ciphertext too short"))
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", model.NewAuthError(model.KindCrypto, "token.Decrypt", fmt.Errorf("failed to open ciphertext: %w", err))
	}

	return string(plaintext), nil
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	if c == nil || len(c.key) == 0 {
		return nil, errors.New("encryption key is not configured")
	}
	return chacha20poly1305.NewX(c.key)
}
