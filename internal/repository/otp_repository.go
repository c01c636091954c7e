package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrOTPNotFound = errors.New("otp not found")

// ワンタイムコードの保存・取得・無効化
type OTPRepository interface {
	Create(ctx context.Context, otp *model.OTP) error

	// (email, action)のactive（未使用・期限内）なOTPを1件取得
	FindActive(ctx context.Context, email string, action model.OTPAction, now time.Time) (*model.OTP, error)

	// used=falseのときだけtrueへフリップ。0件更新なら ErrOTPNotFound
	MarkUsed(ctx context.Context, id string) error

	//(email, action)の未使用OTPを一括無効化。新規発行前に呼ぶ
	InvalidateActive(ctx context.Context, email string, action model.OTPAction) (int64, error)

	//期限切れOTPを物理削除
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
