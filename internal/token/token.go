package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenのtype claim
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// 署名・期限・形式のどれかが不正
	ErrInvalidToken = errors.New("invalid token")
	// typeクレームが期待と不一致（refreshをaccessとして出した等）
	ErrWrongTokenType = errors.New("unexpected token type")
	// jtiクレームが無い
	ErrMissingJTI = errors.New("token missing jti claim")
	// deny-listに載っている
	ErrTokenRevoked = errors.New("token has been revoked")
)

// IsAuthError はVerifyの失敗が「tokenが悪い」類かどうかを返す。
// falseならdeny-list参照などのインフラ障害（401にしてはいけない）。
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrWrongTokenType) ||
		errors.Is(err, ErrMissingJTI) ||
		errors.Is(err, ErrTokenRevoked)
}

// JWTに載せるclaims。{sub, role, jti, iat, exp, type}
type Claims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// subをint64に戻す
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// 発行したaccess/refreshペア。
type Pair struct {
	AccessToken  string
	RefreshToken string

	AccessJTI  string
	RefreshJTI string

	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time

	ExpiresInMinutes int
}

// Serviceはtokenの発行・検証・失効を担う。
// 検証は署名とdeny-listだけ見る（DBは見ない）。refreshレコードの照合はusecase側。
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	cache      repository.RevocationCache
}

func NewService(secret string, accessTTL, refreshTTL time.Duration, cache repository.RevocationCache) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		cache:      cache,
	}
}

// deny-listキーの形
func DenyListKey(jti string) string {
	return "deny_list:jti:" + jti
}

// access/refreshのペアを発行する。副作用なし（永続化は呼び出し側）。
// jtiはそれぞれ別のUUID。
func (s *Service) CreateTokens(userID int64, role model.Role) (*Pair, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	access, err := s.sign(userID, role, TypeAccess, accessJTI, now, accessExp)
	if err != nil {
		return nil, err
	}

	refresh, err := s.sign(userID, role, TypeRefresh, refreshJTI, now, refreshExp)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		ExpiresInMinutes: int(s.accessTTL.Minutes()),
	}, nil
}

func (s *Service) sign(userID int64, role model.Role, typ, jti string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role: string(role),
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify は署名・期限・type・jti・deny-listを確認してclaimsを返す。
// 認証系の失敗はErrInvalidToken系、キャッシュ障害はそのまま返す（呼び出し側で500にする）。
func (s *Service) Verify(ctx context.Context, tokenStr string, expectedType string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	t, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != expectedType {
		return nil, ErrWrongTokenType
	}
	if claims.ID == "" {
		return nil, ErrMissingJTI
	}

	_, denied, err := s.cache.Get(ctx, DenyListKey(claims.ID))
	if err != nil {
		// インフラ障害は「無効なトークン」扱いにしない
		return nil, err
	}
	if denied {
		return nil, ErrTokenRevoked
	}

	return &claims, nil
}

// Revoke はjtiをdeny-listへ入れる。TTLは残り寿命。
// 残り寿命が無い・jtiが空なら何もしない。冪等。
func (s *Service) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// 期限切れtokenはexpチェックで落ちるので載せる意味がない
		return nil
	}

	return s.cache.Set(ctx, DenyListKey(jti), "revoked", ttl)
}

// AccessTTL はaccessトークンの寿命（セッションマーカーのTTLに使う）
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}
