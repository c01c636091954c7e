package validator

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"app/internal/domain/model"
	"app/internal/usecase"
)

// 6桁数字
var otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// 弱すぎて即落とすパスワード
var weakPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"12345678":  {},
	"qwertyui":  {},
}

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return &authValidator{}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	return validNewPassword(password)
}

// ログインの入力を検証。
// パスワード強度はここでは見ない（既存ユーザーを締め出さない）
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("password is required")
	}
	return nil
}

// refresh 入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return invalid("refresh_token is required")
	}
	return nil
}

// OTP発行の入力を検証
func (v *authValidator) ValidateOTPRequest(ctx context.Context, email string, action string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	switch model.OTPAction(action) {
	case model.OTPActionRegister, model.OTPActionResetPassword:
		return nil
	default:
		return invalid("unknown otp action")
	}
}

// OTP検証の入力を検証
func (v *authValidator) ValidateOTPVerify(ctx context.Context, email string, code string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	return validOTPCode(code)
}

// パスワード変更の入力を検証
func (v *authValidator) ValidatePasswordChange(ctx context.Context, oldPassword string, newPassword string) error {
	if oldPassword == "" {
		return invalid("old_password is required")
	}
	if oldPassword == newPassword {
		return invalid("new password must differ from old password")
	}
	return validNewPassword(newPassword)
}

// パスワード再設定の入力を検証
func (v *authValidator) ValidatePasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	if err := validOTPCode(code); err != nil {
		return err
	}
	return validNewPassword(newPassword)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", usecase.ErrValidation, msg)
}

// メール形式をチェック
func validEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("invalid email format")
	}
	return nil
}

// 新規パスワードの最低要件（MVP: 8文字＋弱パスワード拒否）
func validNewPassword(password string) error {
	if len(password) < 8 {
		return invalid("password must be at least 8 characters")
	}
	if _, ok := weakPasswords[strings.ToLower(password)]; ok {
		return invalid("password is too weak")
	}
	return nil
}

// OTPコードの形式をチェック
func validOTPCode(code string) error {
	if !otpCodePattern.MatchString(code) {
		return invalid("otp code must be 6 digits")
	}
	return nil
}
