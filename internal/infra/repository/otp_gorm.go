package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type otpGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewOTPRepository(db *gorm.DB) repo.OTPRepository {
	return &otpGormRepository{db: db}
}

// OTPレコードを保存。emailは小文字に正規化して持つ。
func (r *otpGormRepository) Create(ctx context.Context, otp *model.OTP) error {
	otp.Email = strings.ToLower(otp.Email)
	if err := r.db.WithContext(ctx).Create(otp).Error; err != nil {
		return err
	}
	return nil
}

// (email, action)のactiveなOTPを1件取得します。
func (r *otpGormRepository) FindActive(ctx context.Context, email string, action model.OTPAction, now time.Time) (*model.OTP, error) {
	var otp model.OTP

	err := r.db.WithContext(ctx).
		Where("email = ? AND action = ? AND used = ? AND expires_at >= ?",
			strings.ToLower(email), action, false, now).
		Order("created_at DESC").
		First(&otp).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrOTPNotFound
		}
		return nil, err
	}

	return &otp, nil
}

// used をセットして「使用済み」にします。
// 条件付きUPDATEで単回使用を保証。
func (r *otpGormRepository) MarkUsed(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.OTP{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)

	if result.Error != nil {
		return result.Error
	}

	// 更新件数が0なら「すでに使用済み/存在しない」
	if result.RowsAffected == 0 {
		return repo.ErrOTPNotFound
	}

	return nil
}

// (email, action)の未使用OTPを一括無効化します。
func (r *otpGormRepository) InvalidateActive(ctx context.Context, email string, action model.OTPAction) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.OTP{}).
		Where("email = ? AND action = ? AND used = ?", strings.ToLower(email), action, false).
		Update("used", true)

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// 期限切れOTPを物理削除します。
func (r *otpGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.OTP{})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
