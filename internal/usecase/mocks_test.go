package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/otp"
	"app/internal/repository"
	"app/internal/token"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	args := m.Called(ctx, userID, newHash)
	return args.Error(0)
}

// =====================
// Mock: RefreshTokenRepository
// =====================

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByJTI(ctx context.Context, jti string) (*model.RefreshToken, error) {
	args := m.Called(ctx, jti)
	rt, _ := args.Get(0).(*model.RefreshToken)
	return rt, args.Error(1)
}

func (m *MockRefreshTokenRepository) RevokeByJTI(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) RevokeByID(ctx context.Context, id string, userID int64) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID int64, exceptJTI string) (int64, error) {
	args := m.Called(ctx, userID, exceptJTI)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepository) ListActiveByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.RefreshToken, error) {
	args := m.Called(ctx, userID, limit, offset)
	list, _ := args.Get(0).([]model.RefreshToken)
	return list, args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// ★ 引数をそのまま渡す（ズレると Unexpected Method Call になる）
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// Mock: OTPRepository（otp.Engine経由で使う）
// =====================

type MockOTPRepository struct {
	mock.Mock
}

func (m *MockOTPRepository) Create(ctx context.Context, o *model.OTP) error {
	args := m.Called(ctx, o)
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
// Mock: AuditLogRepository
// =====================

type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]model.AuditLog)
	return list, args.Error(1)
}

// =====================
// Mock: AuthValidator
// =====================

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateOTPRequest(ctx context.Context, email string, action string) error {
	args := m.Called(ctx, email, action)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateOTPVerify(ctx context.Context, email string, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidatePasswordChange(ctx context.Context, oldPassword string, newPassword string) error {
	args := m.Called(ctx, oldPassword, newPassword)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidatePasswordReset(ctx context.Context, email string, code string, newPassword string) error {
	args := m.Called(ctx, email, code, newPassword)
	return args.Error(0)
}

// =====================
// Fake: RevocationCache（in-memory、TTLは無視）
// =====================

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

// =====================
// Fake: TransactionManager（同じmockをTx内でもそのまま使う）
// =====================

type fakeTxRepos struct {
	users repository.UserRepository
	rts   repository.RefreshTokenRepository
	otps  repository.OTPRepository
}

func (f fakeTxRepos) Users() repository.UserRepository                 { return f.users }
func (f fakeTxRepos) RefreshTokens() repository.RefreshTokenRepository { return f.rts }
func (f fakeTxRepos) OTPs() repository.OTPRepository                   { return f.otps }

type fakeTxManager struct {
	repos fakeTxRepos
}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	return fn(f.repos)
}

// =====================
// Fake: Mailer
// =====================

type noopMailer struct{}

func (noopMailer) SendOTP(ctx context.Context, email string, code string, action model.OTPAction) error {
	return nil
}

// =====================
// Helper
// =====================

type ucMocks struct {
	users  *MockUserRepository
	rts    *MockRefreshTokenRepository
	otps   *MockOTPRepository
	audits *MockAuditLogRepository
	v      *MockAuthValidator
	cache  *fakeCache
	tokens *token.Service
	uc     *AuthUsecase
}

func newTestUC(t *testing.T) *ucMocks {
	t.Helper()

	users := new(MockUserRepository)
	rts := new(MockRefreshTokenRepository)
	otps := new(MockOTPRepository)
	audits := new(MockAuditLogRepository)
	v := new(MockAuthValidator)
	cache := newFakeCache()

	cfg := config.Config{
		JWTSecret:        "test-secret",
		AccessTokenTTL:   30 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		OTPTTL:           5 * time.Minute,
		LoginMaxFailures: 3,
		LoginLockWindow:  15 * time.Minute,
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cache)
	engine := otp.NewEngine(otps, noopMailer{}, cfg.OTPTTL)
	txm := &fakeTxManager{repos: fakeTxRepos{users: users, rts: rts, otps: otps}}

	uc := NewAuthUsecase(cfg, users, rts, audits, cache, txm, tokens, engine, v)

	return &ucMocks{
		users:  users,
		rts:    rts,
		otps:   otps,
		audits: audits,
		v:      v,
		cache:  cache,
		tokens: tokens,
		uc:     uc,
	}
}

// 監査ログは常にbest-effortで書かれるので緩く受ける
func (m *ucMocks) allowAudit() {
	m.audits.On("Create", mock.Anything, mock.AnythingOfType("model.AuditLog")).Return(nil).Maybe()
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return string(b)
}

func activeUser(t *testing.T, pass string) *model.User {
	t.Helper()
	return &model.User{
		ID:           1,
		Email:        "user@test.com",
		PasswordHash: mustHash(t, pass),
		Role:         model.RoleUser,
		IsActive:     true,
	}
}
