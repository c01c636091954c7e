package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// refresh tokenレコードの保存・取得・失効
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error

	//jtiで1件検索
	FindByJTI(ctx context.Context, jti string) (*model.RefreshToken, error)

	// revoked=falseのときだけtrueへフリップする。
	// 0件更新なら ErrRefreshTokenNotFound（別リクエストが先に勝った合図）
	RevokeByJTI(ctx context.Context, jti string) error

	// レコードIDで失効（セッション管理用）。
	// 本人のレコード以外は触れないようuserIDも条件に入れる
	RevokeByID(ctx context.Context, id string, userID int64) error

	// 指定ユーザーの未失効トークンを一括失効。exceptJTIは残す（空なら全件）
	RevokeAllByUserID(ctx context.Context, userID int64, exceptJTI string) (int64, error)

	//未失効・期限内のレコードを新しい順でページング取得
	ListActiveByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.RefreshToken, error)

	//期限切れレコードを物理削除
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
