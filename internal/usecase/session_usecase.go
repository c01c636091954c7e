package usecase

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"
)

// アクティブなセッション（未失効refresh tokenレコード）のAPI表現
type SessionDTO struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListSessions は自分のアクティブセッション一覧。
// jtiそのものは返さない（レコードIDだけ見せる）。
func (u *AuthUsecase) ListSessions(ctx context.Context, userID int64, limit, offset int) ([]SessionDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	records, err := u.rtRepo.ListActiveByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, ErrInternal
	}

	sessions := make([]SessionDTO, 0, len(records))
	for _, r := range records {
		sessions = append(sessions, SessionDTO{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return sessions, nil
}

// RevokeSession は自分のセッションを1件失効する。
// 他人のレコードIDを指定しても404（存在自体を漏らさない）。
func (u *AuthUsecase) RevokeSession(ctx context.Context, userID int64, sessionID string, meta ClientMeta) (*SuccessResponse, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}
	if sessionID == "" {
		return nil, ErrValidation
	}

	if err := u.rtRepo.RevokeByID(ctx, sessionID, userID); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrInternal
	}

	u.audit(ctx, userID, model.AuditActionSessionRevoked, meta, sessionID)

	return &SuccessResponse{Message: "session revoked"}, nil
}

// RevokeAllSessions は自分の全セッションを失効する。
// exceptJTIに現在のrefresh jtiを渡すと今の端末だけ残せる。
func (u *AuthUsecase) RevokeAllSessions(ctx context.Context, userID int64, exceptJTI string, meta ClientMeta) (*SuccessResponse, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	n, err := u.rtRepo.RevokeAllByUserID(ctx, userID, exceptJTI)
	if err != nil {
		return nil, ErrInternal
	}

	if n > 0 {
		u.audit(ctx, userID, model.AuditActionSessionRevoked, meta, "all")
	}

	return &SuccessResponse{Message: "sessions revoked"}, nil
}

// ListAuditLogs は管理者向けの監査ログ一覧。roleチェックはmiddleware側。
func (u *AuthUsecase) ListAuditLogs(ctx context.Context, filter repository.AuditLogFilter) ([]model.AuditLog, error) {
	logs, err := u.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, ErrInternal
	}
	return logs, nil
}
