package mailer

import (
	"context"

	"app/internal/domain/model"

	"github.com/labstack/gommon/log"
)

// OTPコードの配送先の約束。実装はSES/SendGridなどに差し替える。
type Mailer interface {
	SendOTP(ctx context.Context, email string, code string, action model.OTPAction) error
}

type logMailer struct{}

// 開発用。メールを送らずログに出すだけ。
func NewLogMailer() Mailer {
	return &logMailer{}
}

func (m *logMailer) SendOTP(_ context.Context, email string, code string, action model.OTPAction) error {
	log.Infof("[MOCK EMAIL] OTP for %s (action=%s): %s", email, action, code)
	return nil
}
