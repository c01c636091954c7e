package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // 一括指定DSN（あれば個別指定より優先）
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // sslmode（disable）

	RedisAddr     string // Redisアドレス（localhost:6379）
	RedisPassword string
	RedisDB       int

	JWTSecret string // JWT署名シークレット

	AccessTokenTTL  time.Duration // accessトークン有効期限（既定30分）
	RefreshTokenTTL time.Duration // refreshトークン有効期限（既定7日）
	OTPTTL          time.Duration // OTP有効期限（既定5分）

	LoginMaxFailures int           // ロックまでの連続失敗回数（既定5）
	LoginLockWindow  time.Duration // ロック時間（既定15分）

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}

	accessMin, err := atoiDefault("ACCESS_TOKEN_TTL_MIN", 30)
	if err != nil {
		return Config{}, err
	}
	refreshDays, err := atoiDefault("REFRESH_TOKEN_TTL_DAYS", 7)
	if err != nil {
		return Config{}, err
	}
	otpMin, err := atoiDefault("OTP_TTL_MIN", 5)
	if err != nil {
		return Config{}, err
	}
	maxFailures, err := atoiDefault("LOGIN_MAX_FAILURES", 5)
	if err != nil {
		return Config{}, err
	}
	lockMin, err := atoiDefault("LOGIN_LOCK_MIN", 15)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		JWTSecret: os.Getenv("JWT_SECRET"),

		AccessTokenTTL:  time.Duration(accessMin) * time.Minute,
		RefreshTokenTTL: time.Duration(refreshDays) * 24 * time.Hour,
		OTPTTL:          time.Duration(otpMin) * time.Minute,

		LoginMaxFailures: maxFailures,
		LoginLockWindow:  time.Duration(lockMin) * time.Minute,

		GoEnv: getenv("GO_ENV", "dev"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 || cfg.OTPTTL <= 0 {
		return Config{}, fmt.Errorf("token/otp TTL must be positive")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}
