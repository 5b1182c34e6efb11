// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/careerdock/internal/model"
)

// DefaultExtraScopes はopenid/email/profileに加えて要求するGoogleのスコープ。
const DefaultExtraScopes = "https://www.googleapis.com/auth/gmail.modify"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleExtraScopes    []string
	OAuthProviderTimeout time.Duration
	OAuthStateCheck      bool

	// Session
	SessionSecret   string
	SessionLifetime time.Duration

	// Credentials
	CredentialsEncryptionKey string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort  string
	BaseURL     string
	LandingPath string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load はカレントディレクトリの.env（存在する場合）と環境変数からConfigを読み込む。
// 既に設定済みの環境変数は.envで上書きしない。
// 必須環境変数が未設定の場合はKindConfigurationのエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromEnv()
}

// FromEnv は環境変数のみからConfigを読み込む。
func FromEnv() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	databaseURL, err := databaseURLFromEnv()
	if err != nil {
		missing = append(missing, err.Error())
	}
	cfg.DatabaseURL = databaseURL

	if err := cfg.loadGoogleClient(); err != nil {
		return nil, err
	}
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = firstEnv("SESSION_SECRET", "JWT_SECRET_KEY")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.CredentialsEncryptionKey = firstEnv("CREDENTIALS_ENCRYPTION_KEY", "ENCRYPTION_KEY")
	if cfg.CredentialsEncryptionKey == "" {
		missing = append(missing, "CREDENTIALS_ENCRYPTION_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, model.NewAuthError(model.KindConfiguration, "config.Load",
			fmt.Errorf("required environment variables are not set: %v", missing))
	}

	// Optional fields with defaults
	cfg.SessionLifetime = time.Duration(getEnvInt("SESSION_LIFETIME_MINUTES", 120)) * time.Minute
	cfg.GoogleExtraScopes = parseScopes(getEnvStringAllowEmpty("GOOGLE_EXTRA_SCOPES", DefaultExtraScopes))
	cfg.OAuthProviderTimeout = getEnvDuration("OAUTH_PROVIDER_TIMEOUT", 10*time.Second)
	cfg.OAuthStateCheck = getEnvBool("OAUTH_STATE_CHECK", true)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LandingPath = getEnvString("LANDING_PATH", "/dashboard")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

// loadDotEnv は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return model.NewAuthError(model.KindConfiguration, "config.loadDotEnv",
			fmt.Errorf("failed to load %s: %w", path, err))
	}
	return nil
}

// loadGoogleClient はOAuthクライアント情報を読み込む。
// GOOGLE_CLIENT_SECRET_FILEが指定されている場合はGoogleのclient_secret JSON（web/installed）を読み、
// 個別の環境変数が設定されていればそちらを優先する。
func (c *Config) loadGoogleClient() error {
	if path := firstEnv("GOOGLE_CLIENT_SECRET_FILE", "CLIENT_SECRET_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return model.NewAuthError(model.KindConfiguration, "config.loadGoogleClient",
				fmt.Errorf("failed to read client secret file: %w", err))
		}
		oc, err := google.ConfigFromJSON(data)
		if err != nil {
			return model.NewAuthError(model.KindConfiguration, "config.loadGoogleClient",
				fmt.Errorf("failed to parse client secret file: %w", err))
		}
		c.GoogleClientID = oc.ClientID
		c.GoogleClientSecret = oc.ClientSecret
		c.GoogleRedirectURL = oc.RedirectURL
	}

	c.GoogleClientID = getEnvString("GOOGLE_CLIENT_ID", c.GoogleClientID)
	c.GoogleClientSecret = getEnvString("GOOGLE_CLIENT_SECRET", c.GoogleClientSecret)
	c.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", c.GoogleRedirectURL)
	return nil
}

// databaseURLFromEnv はDATABASE_URL、またはPOSTGRES_*の各要素から接続URLを組み立てる。
func databaseURLFromEnv() (string, error) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v, nil
	}

	keys := []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB"}
	values := make(map[string]string, len(keys))
	var incomplete bool
	for _, k := range keys {
		values[k] = os.Getenv(k)
		if values[k] == "" {
			incomplete = true
		}
	}
	if incomplete {
		return "", errors.New("DATABASE_URL")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(values["POSTGRES_USER"], values["POSTGRES_PASSWORD"]),
		Host:     net.JoinHostPort(values["POSTGRES_HOST"], values["POSTGRES_PORT"]),
		Path:     "/" + values["POSTGRES_DB"],
		RawQuery: "sslmode=" + getEnvString("POSTGRES_SSLMODE", "disable"),
	}
	return u.String(), nil
}

// parseScopes はカンマまたは空白区切りのスコープ一覧を分割する。
func parseScopes(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvStringAllowEmpty は変数が明示的に空文字で設定された場合も空文字を返す。
func getEnvStringAllowEmpty(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
