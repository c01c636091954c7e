package repository

import (
	"context"
	"time"
)

// 失効済みjtiのdeny-listとセッションマーカーを置くTTL付きKVSの約束。
// 値が無いときは ("", false, nil) を返す（エラーにしない）
type RevocationCache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
