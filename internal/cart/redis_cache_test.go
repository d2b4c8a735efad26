package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, 0)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestRedisGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user123"

	crt := &Cart{
		UserID: userID,
		Items: []CartItem{
			{ProductID: 1, Name: "Airpods", UnitPrice: dec("50"), Quantity: 2},
			{ProductID: 2, Name: "Mouse", UnitPrice: dec("100"), Quantity: 3},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	cartJSON, _ := json.Marshal(crt)
	mr.Set(cacheKey(userID), string(cartJSON))

	result, err := cache.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, int64(1), result.Items[0].ProductID)
	assert.True(t, result.Items[0].UnitPrice.Equal(dec("50")))
}

func TestRedisGet_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestRedisGet_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user123"
	err := mr.Set(cacheKey(userID), `{"user_id": "user1`)
	require.NoError(t, err)

	_, cacheErr := cache.Get(context.Background(), userID)
	require.ErrorContains(t, cacheErr, "unmarshal cart failed")
}

func TestRedisSet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	userID := "user456"

	crt := &Cart{
		UserID: userID,
		Items: []CartItem{
			{ProductID: 10, Name: "Keyboard", UnitPrice: dec("75"), Quantity: 5},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err := cache.Set(ctx, userID, crt)
	require.NoError(t, err)

	stored, e2 := mr.Get(cacheKey(userID))
	require.NoError(t, e2)
	assert.NotEmpty(t, stored)

	var storedCart Cart
	err = json.Unmarshal([]byte(stored), &storedCart)
	require.NoError(t, err)
	assert.Equal(t, userID, storedCart.UserID)
	assert.Len(t, storedCart.Items, 1)
}

func TestRedisSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user789"
	err := cache.Set(context.Background(), userID, &Cart{UserID: userID})
	require.NoError(t, err)

	// Check that TTL was set (miniredis tracks TTL)
	ttl := mr.TTL(cacheKey(userID))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 20*time.Minute, "TTL should be base + max jitter")
}

func TestRedisSet_ConfiguredTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, 30*time.Minute)

	userID := "user-ttl"
	err := cache.Set(context.Background(), userID, &Cart{UserID: userID})
	require.NoError(t, err)

	ttl := mr.TTL(cacheKey(userID))
	assert.True(t, ttl >= 30*time.Minute, "TTL should be at least the configured base")
	assert.True(t, ttl <= 40*time.Minute, "jitter stays within a third of the base")
}

func TestRedisDelete_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	userID := "user999"
	cartJSON, _ := json.Marshal(&Cart{UserID: userID})
	mr.Set(cacheKey(userID), string(cartJSON))
	assert.True(t, mr.Exists(cacheKey(userID)))

	err := cache.Delete(context.Background(), userID)
	require.NoError(t, err)

	assert.False(t, mr.Exists(cacheKey(userID)))
}

func TestRedisDelete_NonExistentKey(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	err := cache.Delete(context.Background(), "nonexistent")
	assert.NoError(t, err)
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
