package model

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 認証の主体。roleはenumで持つ（継承はしない）
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`

	// OTP検証が済むまでfalse
	IsActive bool `gorm:"not null;default:false" json:"is_active"`

	// 連続ログイン失敗の記録とロック状態
	FailedLoginCount int        `gorm:"not null;default:0" json:"-"`
	IsLocked         bool       `gorm:"not null;default:false" json:"-"`
	LockedUntil      *time.Time `json:"-"`

	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ロック期限が過ぎていれば実質ロック解除とみなす
func (u *User) LockExpired(now time.Time) bool {
	return u.IsLocked && u.LockedUntil != nil && u.LockedUntil.Before(now)
}
