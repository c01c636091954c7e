package usecase

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/otp"
	"app/internal/repository"
	"app/internal/token"

	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403　権限
	ErrForbidden = errors.New("forbidden")
	//403 refresh tokenが再利用されてしまっている
	ErrSecurityIncident = errors.New("security incident")
	//403 ロック中アカウント
	ErrAccountLocked = errors.New("account locked")
	//競合
	ErrConflict = errors.New("conflict")
	//404
	ErrNotFound = errors.New("not found")
	//500
	ErrInternal = errors.New("internal error")
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
	ValidateOTPRequest(ctx context.Context, email string, action string) error
	ValidateOTPVerify(ctx context.Context, email string, code string) error
	ValidatePasswordChange(ctx context.Context, oldPassword string, newPassword string) error
	ValidatePasswordReset(ctx context.Context, email string, code string, newPassword string) error
}

type UserDTO struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type TokenPairDTO struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO      `json:"user"`
	Token TokenPairDTO `json:"token"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// 監査ログに残す接続元情報
type ClientMeta struct {
	IP        string
	UserAgent string
}

type AuthUsecase struct {
	cfg       config.Config
	users     repository.UserRepository
	rtRepo    repository.RefreshTokenRepository
	auditRepo repository.AuditLogRepository
	cache     repository.RevocationCache
	txm       repository.TransactionManager
	tokens    *token.Service
	otps      *otp.Engine
	validator AuthValidator
}

func NewAuthUsecase(
	cfg config.Config,
	users repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	auditRepo repository.AuditLogRepository,
	cache repository.RevocationCache,
	txm repository.TransactionManager,
	tokens *token.Service,
	otps *otp.Engine,
	validator AuthValidator,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:       cfg,
		users:     users,
		rtRepo:    rtRepo,
		auditRepo: auditRepo,
		cache:     cache,
		txm:       txm,
		tokens:    tokens,
		otps:      otps,
		validator: validator,
	}
}

// セッションマーカーのキー形。存在は参考情報（認可の根拠にはしない）
func sessionKey(userID int64, jti string) string {
	return fmt.Sprintf("user_session:%d:%s", userID, jti)
}

// emailは小文字で統一して扱う（User/OTPの両テーブルで同じキーになるように）
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// 監査ログはbest-effort（失敗しても本処理は止めない）
func (u *AuthUsecase) audit(ctx context.Context, userID int64, action model.AuditAction, meta ClientMeta, detail string) {
	_ = u.auditRepo.Create(ctx, model.AuditLog{
		UserID:    userID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
}

// Register はユーザーを非アクティブで作成してregister用OTPを送る。
// tokenはここでは発行しない（登録はログインではない）
func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (*SuccessResponse, error) {
	req.Email = normalizeEmail(req.Email)

	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	//email重複チェック（ここはConflictを意図的に返す）
	existing, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInternal
	}
	if existing != nil {
		return nil, ErrConflict
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		IsActive:     false, // OTP検証で立てる
	}

	if err := u.users.Create(ctx, user); err != nil {
		// Conflictはunique制約違反（同時登録のレース）だけ。DB障害を409に化けさせない
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, ErrInternal
	}

	//検証用OTPを発行
	if err := u.otps.Request(ctx, req.Email, model.OTPActionRegister); err != nil {
		return nil, ErrInternal
	}

	return &SuccessResponse{Message: "registration successful, please verify your email"}, nil
}

// RequestOTP はOTPの(再)発行。
// reset_passwordは存在しないemailでも成功を返す（ユーザー列挙を防ぐ）
func (u *AuthUsecase) RequestOTP(ctx context.Context, email string, action model.OTPAction, meta ClientMeta) (*SuccessResponse, error) {
	email = normalizeEmail(email)

	if err := u.validator.ValidateOTPRequest(ctx, email, string(action)); err != nil {
		return nil, err
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if action == model.OTPActionResetPassword {
				// 存在を漏らさない
				return &SuccessResponse{Message: "if the email exists, an OTP has been sent"}, nil
			}
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	// すでにアクティブな人へのregister用OTPは出さない
	if action == model.OTPActionRegister && user.IsActive {
		return &SuccessResponse{Message: "account is already verified"}, nil
	}

	if err := u.otps.Request(ctx, email, action); err != nil {
		return nil, ErrInternal
	}

	u.audit(ctx, user.ID, model.AuditActionOTPRequested, meta, string(action))

	return &SuccessResponse{Message: "if the email exists, an OTP has been sent"}, nil
}

// VerifyRegistrationOTP はregister用OTPを消費してユーザーをアクティブ化する。
// すでにアクティブでも成功（状態変更なしの冪等）
func (u *AuthUsecase) VerifyRegistrationOTP(ctx context.Context, email string, code string, meta ClientMeta) (*SuccessResponse, error) {
	email = normalizeEmail(email)

	if err := u.validator.ValidateOTPVerify(ctx, email, code); err != nil {
		return nil, err
	}

	if _, err := u.otps.VerifyAndConsume(ctx, email, model.OTPActionRegister, code); err != nil {
		if errors.Is(err, otp.ErrInvalidOTP) {
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// register()が通っていれば来ないはず（防御）
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	if !user.IsActive {
		user.IsActive = true
		if err := u.users.Update(ctx, user); err != nil {
			return nil, ErrInternal
		}
		u.audit(ctx, user.ID, model.AuditActionAccountActivated, meta, "")
	}
	u.audit(ctx, user.ID, model.AuditActionOTPVerified, meta, string(model.OTPActionRegister))

	return &SuccessResponse{Message: "account verified"}, nil
}

// Login は認証してaccess/refreshペアを返す。
// ユーザー不在とパスワード違いは同じ401（どちらが違うか漏らさない）
func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest, meta ClientMeta) (*AuthLoginResponse, error) {
	req.Email = normalizeEmail(req.Email)

	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return nil, err
	}

	// 期限切れレコードのついで掃除（失敗してもログイン継続）
	now := time.Now()
	_, _ = u.rtRepo.DeleteExpired(ctx, now)

	user, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			u.audit(ctx, 0, model.AuditActionLoginFailure, meta, req.Email)
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	//ロック判定。期限が過ぎていれば解除して続行
	if user.IsLocked {
		if !user.LockExpired(now) {
			return nil, ErrAccountLocked
		}
		user.IsLocked = false
		user.LockedUntil = nil
		user.FailedLoginCount = 0
	}

	//OTP未検証ユーザーはログイン不可
	if !user.IsActive {
		return nil, ErrForbidden
	}

	//パスワード照合（bcrypt）
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		user.FailedLoginCount++
		if user.FailedLoginCount >= u.cfg.LoginMaxFailures {
			lockedUntil := now.Add(u.cfg.LoginLockWindow)
			user.IsLocked = true
			user.LockedUntil = &lockedUntil
			u.audit(ctx, user.ID, model.AuditActionAccountLocked, meta, "")
		}
		_ = u.users.Update(ctx, user)

		u.audit(ctx, user.ID, model.AuditActionLoginFailure, meta, "")
		return nil, ErrUnauthorized
	}

	//失敗カウンタのリセットとlast_login更新（失敗しても継続）
	user.FailedLoginCount = 0
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	//token発行＋refreshレコード保存＋セッションマーカー
	pair, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	u.audit(ctx, user.ID, model.AuditActionLoginSuccess, meta, "")

	return &AuthLoginResponse{
		User:  toUserDTO(user),
		Token: *pair,
	}, nil
}

// token発行と付随する永続化をまとめる（login/refresh共通）
func (u *AuthUsecase) issueSession(ctx context.Context, user *model.User) (*TokenPairDTO, error) {
	pair, err := u.tokens.CreateTokens(user.ID, user.Role)
	if err != nil {
		return nil, ErrInternal
	}

	rt := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		JTI:       pair.RefreshJTI,
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: time.Now(),
	}
	if err := u.rtRepo.Create(ctx, rt); err != nil {
		return nil, ErrInternal
	}

	// マーカーは参考情報なので失敗しても処理は通す
	_ = u.cache.Set(ctx, sessionKey(user.ID, pair.AccessJTI), "active", u.tokens.AccessTTL())

	return &TokenPairDTO{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		ExpiresInMinutes: pair.ExpiresInMinutes,
	}, nil
}

// Logout は提示されたaccess tokenだけを失効する（他端末は対象外）。
// 引数が欠けていれば何もしない。二重呼び出しもエラーにしない。
func (u *AuthUsecase) Logout(ctx context.Context, userID int64, jti string, exp time.Time, meta ClientMeta) (*SuccessResponse, error) {
	if userID == 0 || jti == "" || exp.IsZero() {
		return &SuccessResponse{Message: "logout success"}, nil
	}

	// deny-list書き込みはレスポンスより先に確定させる
	if err := u.tokens.Revoke(ctx, jti, exp); err != nil {
		return nil, ErrInternal
	}

	_ = u.cache.Delete(ctx, sessionKey(userID, jti))

	u.audit(ctx, userID, model.AuditActionLogout, meta, "")

	return &SuccessResponse{Message: "logout success"}, nil
}

// Me は自分のユーザー情報を返す。
func (u *AuthUsecase) Me(ctx context.Context, userID int64) (*UserDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	if !user.IsActive {
		return nil, ErrForbidden
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}
