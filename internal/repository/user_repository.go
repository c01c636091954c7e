package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// emailのunique制約違反（同時登録のレース）
var ErrDuplicateEmail = errors.New("duplicate email")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ユーザー情報の更新=>アクティブ化・最終ログイン・失敗カウンタなど
	Update(ctx context.Context, user *model.User) error
	//パスワードハッシュだけを差し替える
	UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error
}
