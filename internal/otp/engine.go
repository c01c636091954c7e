package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"app/internal/domain/model"
	"app/internal/mailer"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"
)

// コードが違う・期限切れ・存在しないを全部同じ扱いにする
var ErrInvalidOTP = errors.New("invalid or expired OTP")

// 6桁コード
const codeDigits = 1000000

// EngineはOTPの発行・検証・無効化を担う。
// コードは平文保存せずbcryptで持つ。比較もbcrypt（naiveな文字列比較のタイミング差を避ける）。
type Engine struct {
	otps   repository.OTPRepository
	mailer mailer.Mailer
	ttl    time.Duration
}

func NewEngine(otps repository.OTPRepository, m mailer.Mailer, ttl time.Duration) *Engine {
	return &Engine{
		otps:   otps,
		mailer: m,
		ttl:    ttl,
	}
}

// Request は(email, action)の新しいOTPを発行する。
// 既存のactiveなOTPは先に無効化するので、呼んだ後activeは常に1件。
// actionが違うOTPには触らない（registerの発行はreset_passwordを消さない）。
func (e *Engine) Request(ctx context.Context, email string, action model.OTPAction) error {
	if _, err := e.otps.InvalidateActive(ctx, email, action); err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	now := time.Now()
	rec := &model.OTP{
		ID:        uuid.NewString(),
		Email:     email,
		Action:    action,
		CodeHash:  string(hash),
		Used:      false,
		ExpiresAt: now.Add(e.ttl),
		CreatedAt: now,
	}

	if err := e.otps.Create(ctx, rec); err != nil {
		return err
	}

	// 配送失敗でリクエスト自体は失敗にしないが、黙って握りつぶさない
	if err := e.mailer.SendOTP(ctx, email, code, action); err != nil {
		log.Errorf("otp: send failed for %s (action=%s): %v", email, action, err)
	}

	return nil
}

// VerifyAndConsume はactiveなOTPを照合して使用済みにする。
// 一致しても使用済みフリップに負けたら（並行検証）無効扱い。
func (e *Engine) VerifyAndConsume(ctx context.Context, email string, action model.OTPAction, code string) (*model.OTP, error) {
	rec, err := e.otps.FindActive(ctx, email, action, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		return nil, ErrInvalidOTP
	}

	if err := e.otps.MarkUsed(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, err
	}

	rec.Used = true
	return rec, nil
}

// PruneExpired は期限切れOTPを掃除する。定期実行用でリクエスト経路には入れない。
func (e *Engine) PruneExpired(ctx context.Context) (int64, error) {
	return e.otps.DeleteExpired(ctx, time.Now())
}

// 一様ランダムな6桁コードを作る
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeDigits))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
