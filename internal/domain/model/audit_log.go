package model

import "time"

// 認証イベントの種類
type AuditAction string

const (
	AuditActionLoginSuccess     AuditAction = "LOGIN_SUCCESS"
	AuditActionLoginFailure     AuditAction = "LOGIN_FAILURE"
	AuditActionAccountLocked    AuditAction = "ACCOUNT_LOCKED"
	AuditActionLogout           AuditAction = "LOGOUT"
	AuditActionTokenRefreshed   AuditAction = "TOKEN_REFRESHED"
	AuditActionTokenReuse       AuditAction = "TOKEN_REUSE_DETECTED"
	AuditActionPasswordChanged  AuditAction = "PASSWORD_CHANGED"
	AuditActionPasswordReset    AuditAction = "PASSWORD_RESET"
	AuditActionOTPRequested     AuditAction = "OTP_REQUESTED"
	AuditActionOTPVerified      AuditAction = "OTP_VERIFIED"
	AuditActionSessionRevoked   AuditAction = "SESSION_REVOKED"
	AuditActionAccountActivated AuditAction = "ACCOUNT_ACTIVATED"
	AuditActionAccountUnlocked  AuditAction = "ACCOUNT_UNLOCKED"
)

// 認証イベントの監査ログ。
// 「誰が」「いつ」「どこから」「何をしたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// 対象ユーザーのID（未ログイン失敗などは0）
	UserID int64 `gorm:"not null;index" json:"user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	// 接続元情報
	IP        string `gorm:"type:varchar(64)" json:"ip"`
	UserAgent string `gorm:"type:varchar(255)" json:"user_agent"`

	// 補足（対象jtiなど）
	Detail string `gorm:"type:text" json:"detail"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
