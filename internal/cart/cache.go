package cart

import (
	"context"
	"errors"
)

type Cache interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Set(ctx context.Context, userID string, cart *Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache is used when no Redis endpoint is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Cart, error)    { return nil, ErrCacheMiss }
func (NoopCache) Set(context.Context, string, *Cart) error      { return nil }
func (NoopCache) Delete(context.Context, string) error          { return nil }
