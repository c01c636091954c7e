package usecase

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"
	"app/internal/token"
)

// Refresh はrefresh tokenのローテーション。
// 旧tokenの失効を確定させてから新ペアを発行する（revoke-before-issue）。
// 失効済みレコードの再提示は盗難シグナルとみなし、全refresh tokenを失効して403。
func (u *AuthUsecase) Refresh(ctx context.Context, oldRefreshToken string, meta ClientMeta) (*AuthLoginResponse, error) {
	if err := u.validator.ValidateRefresh(ctx, oldRefreshToken); err != nil {
		return nil, err
	}

	//署名・期限・type・deny-listの検証
	claims, err := u.tokens.Verify(ctx, oldRefreshToken, token.TypeRefresh)
	if err != nil {
		if token.IsAuthError(err) {
			return nil, ErrUnauthorized
		}
		// キャッシュ障害を「無効token」に化けさせない
		return nil, ErrInternal
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthorized
	}

	//DBレコード照合
	rec, err := u.rtRepo.FindByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}

	//失効済みの再提示＝ローテーション済みtokenの再利用
	if rec.Revoked {
		return nil, u.handleTokenReuse(ctx, userID, claims.ID, meta)
	}

	//レコード期限切れ（JWTのexpで先に落ちているはずの防御）
	if rec.ExpiresAt.Before(time.Now()) {
		return nil, ErrUnauthorized
	}

	// 条件付きフリップ。同時リクエストでは勝者が1人だけ。
	// 負けた側は「すでに失効済み」なので盗難経路へ
	if err := u.rtRepo.RevokeByJTI(ctx, claims.ID); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, u.handleTokenReuse(ctx, userID, claims.ID, meta)
		}
		return nil, ErrInternal
	}

	//発行と失効の間にユーザーが無効化されていないか再確認
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}

	//新ペア発行
	pair, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	u.audit(ctx, userID, model.AuditActionTokenRefreshed, meta, "")

	return &AuthLoginResponse{
		User:  toUserDTO(user),
		Token: *pair,
	}, nil
}

// 再利用検知時のフェイルセーフ。全refresh tokenを失効して全端末を締め出す。
func (u *AuthUsecase) handleTokenReuse(ctx context.Context, userID int64, jti string, meta ClientMeta) error {
	if _, err := u.rtRepo.RevokeAllByUserID(ctx, userID, ""); err != nil {
		return ErrInternal
	}

	u.audit(ctx, userID, model.AuditActionTokenReuse, meta, jti)

	return ErrSecurityIncident
}
