package model

import "time"

type OTPAction string

const (
	OTPActionRegister      OTPAction = "register"
	OTPActionResetPassword OTPAction = "reset_password"
)

// ワンタイムコード。平文は保存せずbcryptハッシュのみ持つ。
// (email, action)ごとにactive（未使用・期限内）は常に1件以下。
// 新規発行前に既存activeを一括無効化して保証する。
// 移行メモ: DB側でも partial unique index (email, action) WHERE used = false を張るとレースが構造的に防げる。
type OTP struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"not null;index:idx_otp_email_action" json:"email"`
	Action    OTPAction `gorm:"type:varchar(20);not null;index:idx_otp_email_action" json:"action"`
	CodeHash  string    `gorm:"column:code_hash;not null" json:"-"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
