package usecase

import (
	"context"
	"errors"

	"app/internal/domain/model"
	"app/internal/otp"
	"app/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// ChangePassword はログイン中ユーザーのパスワード変更。
// 現在のパスワードを再確認してから差し替え、全refresh tokenを失効する。
// access tokenは寿命まで生かす（失効はrefresh側だけ）。
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string, meta ClientMeta) (*SuccessResponse, error) {
	if err := u.validator.ValidatePasswordChange(ctx, oldPassword, newPassword); err != nil {
		return nil, err
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	//本人確認（sessionがあっても現パスワードを要求する）
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return nil, ErrUnauthorized
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	// ハッシュ差し替えと全失効は同一Txで（片方だけ成立させない）
	err = u.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Users().UpdatePasswordHash(ctx, userID, string(newHash)); err != nil {
			return err
		}
		if _, err := r.RefreshTokens().RevokeAllByUserID(ctx, userID, ""); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, ErrInternal
	}

	u.audit(ctx, userID, model.AuditActionPasswordChanged, meta, "")

	return &SuccessResponse{Message: "password changed"}, nil
}

// ResetPasswordWithOTP はreset_password用OTPを消費してパスワードを再設定する。
// 未ログインで呼ばれる前提。OTP不正は401（emailの存在は漏らさない）。
func (u *AuthUsecase) ResetPasswordWithOTP(ctx context.Context, email, code, newPassword string, meta ClientMeta) (*SuccessResponse, error) {
	email = normalizeEmail(email)

	if err := u.validator.ValidatePasswordReset(ctx, email, code, newPassword); err != nil {
		return nil, err
	}

	if _, err := u.otps.VerifyAndConsume(ctx, email, model.OTPActionResetPassword, code); err != nil {
		if errors.Is(err, otp.ErrInvalidOTP) {
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// OTPが存在した時点でユーザーはいるはず（防御）
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	err = u.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.Users().UpdatePasswordHash(ctx, user.ID, string(newHash)); err != nil {
			return err
		}
		// 盗まれた認証情報でのセッション継続を断つ
		if _, err := r.RefreshTokens().RevokeAllByUserID(ctx, user.ID, ""); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, ErrInternal
	}

	u.audit(ctx, user.ID, model.AuditActionPasswordReset, meta, "")

	return &SuccessResponse{Message: "password reset"}, nil
}

// Unlock は管理者によるロック解除。失敗カウンタも0に戻す。
func (u *AuthUsecase) Unlock(ctx context.Context, targetUserID int64, meta ClientMeta) (*SuccessResponse, error) {
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	if user.IsLocked || user.FailedLoginCount > 0 {
		user.IsLocked = false
		user.LockedUntil = nil
		user.FailedLoginCount = 0
		if err := u.users.Update(ctx, user); err != nil {
			return nil, ErrInternal
		}
		u.audit(ctx, targetUserID, model.AuditActionAccountUnlocked, meta, "")
	}

	return &SuccessResponse{Message: "account unlocked"}, nil
}
