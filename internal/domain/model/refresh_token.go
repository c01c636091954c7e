package model

import "time"

// refresh tokenのjtiごとの永続レコード。
// ローテーションの単回使用をrevokedの単方向フリップで保証する。
type RefreshToken struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	JTI       string    `gorm:"column:jti;not null;uniqueIndex" json:"-"`
	Revoked   bool      `gorm:"not null;default:false;index" json:"revoked"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// 未失効かつ期限内
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
