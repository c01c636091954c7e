package otp

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mock: OTPRepository
// =====================

type MockOTPRepository struct {
	mock.Mock
}

func (m *MockOTPRepository) Create(ctx context.Context, otp *model.OTP) error {
	args := m.Called(ctx, otp)
	return args.Error(0)
}

func (m *MockOTPRepository) FindActive(ctx context.Context, email string, action model.OTPAction, now time.Time) (*model.OTP, error) {
	args := m.Called(ctx, email, action, now)
	o, _ := args.Get(0).(*model.OTP)
	return o, args.Error(1)
}

func (m *MockOTPRepository) MarkUsed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOTPRepository) InvalidateActive(ctx context.Context, email string, action model.OTPAction) (int64, error) {
	args := m.Called(ctx, email, action)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// Mock: Mailer
// =====================

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendOTP(ctx context.Context, email string, code string, action model.OTPAction) error {
	args := m.Called(ctx, email, code, action)
	return args.Error(0)
}

// =====================
// Request
// =====================

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func TestEngine_Request_InvalidatesThenCreates(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	var sentCode string

	// 既存activeの無効化が先
	otps.On("InvalidateActive", mock.Anything, "user@test.com", model.OTPActionRegister).Return(int64(1), nil)

	otps.On("Create", mock.Anything, mock.MatchedBy(func(o *model.OTP) bool {
		// 平文コードは保存されない
		return o.Email == "user@test.com" &&
			o.Action == model.OTPActionRegister &&
			!o.Used &&
			o.CodeHash != "" &&
			!sixDigits.MatchString(o.CodeHash) &&
			o.ExpiresAt.After(time.Now())
	})).Return(nil)

	m.On("SendOTP", mock.Anything, "user@test.com", mock.MatchedBy(func(code string) bool {
		sentCode = code
		return sixDigits.MatchString(code)
	}), model.OTPActionRegister).Return(nil)

	e := NewEngine(otps, m, 5*time.Minute)

	err := e.Request(ctx, "user@test.com", model.OTPActionRegister)
	require.NoError(t, err)

	// 送ったコードと保存されたハッシュが対応している
	created := otps.Calls[1].Arguments.Get(1).(*model.OTP)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.CodeHash), []byte(sentCode)))

	otps.AssertExpectations(t)
	m.AssertExpectations(t)
}

// メール配送の失敗でリクエストは失敗しない
func TestEngine_Request_MailFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("InvalidateActive", mock.Anything, "user@test.com", model.OTPActionResetPassword).Return(int64(0), nil)
	otps.On("Create", mock.Anything, mock.AnythingOfType("*model.OTP")).Return(nil)
	m.On("SendOTP", mock.Anything, "user@test.com", mock.AnythingOfType("string"), model.OTPActionResetPassword).
		Return(errors.New("smtp down"))

	e := NewEngine(otps, m, 5*time.Minute)

	err := e.Request(ctx, "user@test.com", model.OTPActionResetPassword)
	assert.NoError(t, err)
}

func TestEngine_Request_InvalidateFailureAborts(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("InvalidateActive", mock.Anything, "user@test.com", model.OTPActionRegister).
		Return(int64(0), errors.New("db down"))

	e := NewEngine(otps, m, 5*time.Minute)

	err := e.Request(ctx, "user@test.com", model.OTPActionRegister)
	assert.Error(t, err)

	otps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// VerifyAndConsume
// =====================

func activeOTP(t *testing.T, code string) *model.OTP {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &model.OTP{
		ID:        "otp-1",
		Email:     "user@test.com",
		Action:    model.OTPActionRegister,
		CodeHash:  string(hash),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
}

func TestEngine_VerifyAndConsume_Success(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("FindActive", mock.Anything, "user@test.com", model.OTPActionRegister, mock.AnythingOfType("time.Time")).
		Return(activeOTP(t, "123456"), nil)
	otps.On("MarkUsed", mock.Anything, "otp-1").Return(nil)

	e := NewEngine(otps, m, 5*time.Minute)

	rec, err := e.VerifyAndConsume(ctx, "user@test.com", model.OTPActionRegister, "123456")
	require.NoError(t, err)
	assert.True(t, rec.Used)

	otps.AssertExpectations(t)
}

func TestEngine_VerifyAndConsume_WrongCode(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("FindActive", mock.Anything, "user@test.com", model.OTPActionRegister, mock.AnythingOfType("time.Time")).
		Return(activeOTP(t, "123456"), nil)

	e := NewEngine(otps, m, 5*time.Minute)

	_, err := e.VerifyAndConsume(ctx, "user@test.com", model.OTPActionRegister, "654321")
	assert.ErrorIs(t, err, ErrInvalidOTP)

	// 間違いコードでは消費しない
	otps.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything)
}

// activeが無い（期限切れ・未発行・使用済み）は全部同じ扱い
func TestEngine_VerifyAndConsume_NoActive(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("FindActive", mock.Anything, "user@test.com", model.OTPActionResetPassword, mock.AnythingOfType("time.Time")).
		Return(nil, repository.ErrOTPNotFound)

	e := NewEngine(otps, m, 5*time.Minute)

	_, err := e.VerifyAndConsume(ctx, "user@test.com", model.OTPActionResetPassword, "123456")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

// 並行検証でフリップに負けた側は無効扱い
func TestEngine_VerifyAndConsume_LostConsumeRace(t *testing.T) {
	ctx := context.Background()
	otps := new(MockOTPRepository)
	m := new(MockMailer)

	otps.On("FindActive", mock.Anything, "user@test.com", model.OTPActionRegister, mock.AnythingOfType("time.Time")).
		Return(activeOTP(t, "123456"), nil)
	otps.On("MarkUsed", mock.Anything, "otp-1").Return(repository.ErrOTPNotFound)

	e := NewEngine(otps, m, 5*time.Minute)

	_, err := e.VerifyAndConsume(ctx, "user@test.com", model.OTPActionRegister, "123456")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}
