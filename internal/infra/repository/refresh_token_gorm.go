package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type refreshTokenGormRepository struct {
	db *gorm.DB //DB接続（GORM）
}

// GORM実装
func NewRefreshTokenRepository(db *gorm.DB) repo.RefreshTokenRepository {
	return &refreshTokenGormRepository{db: db}
}

// リフレッシュトークンレコードを保存。
func (r *refreshTokenGormRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	//タイムアウトやキャンセルをDB処理に伝える
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return err
	}
	return nil
}

// jtiで1件検索します。
func (r *refreshTokenGormRepository) FindByJTI(ctx context.Context, jti string) (*model.RefreshToken, error) {
	var token model.RefreshToken

	err := r.db.WithContext(ctx).
		Where("jti = ?", jti).
		First(&token).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return &token, nil
}

// revoked をセットして失効。
// 条件付きUPDATEなので同時リクエストでは勝者が1人だけになる。
func (r *refreshTokenGormRepository) RevokeByJTI(ctx context.Context, jti string) error {
	result := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true)

	if result.Error != nil {
		return result.Error
	}

	// 更新件数が0なら「すでに失効済み/存在しない」
	if result.RowsAffected == 0 {
		return repo.ErrRefreshTokenNotFound
	}

	return nil
}

// レコードIDで失効。本人のレコードだけが対象。
func (r *refreshTokenGormRepository) RevokeByID(ctx context.Context, id string, userID int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("id = ? AND user_id = ? AND revoked = ?", id, userID, false).
		Update("revoked", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.ErrRefreshTokenNotFound
	}

	return nil
}

// 指定ユーザーの未失効トークンを一括失効します。
func (r *refreshTokenGormRepository) RevokeAllByUserID(ctx context.Context, userID int64, exceptJTI string) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false)

	if exceptJTI != "" {
		q = q.Where("jti <> ?", exceptJTI)
	}

	result := q.Update("revoked", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// 未失効・期限内のレコードを新しい順でページング取得。
func (r *refreshTokenGormRepository) ListActiveByUserID(ctx context.Context, userID int64, limit, offset int) ([]model.RefreshToken, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var tokens []model.RefreshToken
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, time.Now()).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tokens).Error

	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// 期限切れレコードを物理削除します。
func (r *refreshTokenGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.RefreshToken{})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
