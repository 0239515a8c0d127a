package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage is a hash oriented key/value backend. Values passed to Get, Set and
// Save are structs tagged with `redis:"field"` or maps. Get also accepts
// *map[string]string.
type Storage interface {
	Get(ctx context.Context, key string, val any) error
	Set(ctx context.Context, key string, val any, expiresIn time.Duration) error
	Save(ctx context.Context, key string, val any) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresIn time.Duration) error
	SetAttr(ctx context.Context, key string, field string, val any) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
	DelAttr(ctx context.Context, key, field string) error
}

// Store is a typed view over a prefixed Storage.
type Store[T any] interface {
	Get(ctx context.Context, key string) (T, error)
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, expiresIn time.Duration) error
	GetAttr(ctx context.Context, key, field string, val any) error
	IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error)
}
