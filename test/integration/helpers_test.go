//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/board"
	"github.com/vyrodovalexey/rosterboard/internal/store"
)

// Environment variable names for integration test configuration.
const (
	EnvRedisAddr     = "INTEGRATION_REDIS_ADDR"
	EnvRedisPassword = "INTEGRATION_REDIS_PASSWORD"
	EnvRedisDB       = "INTEGRATION_REDIS_DB"
)

// Default configuration values.
const (
	DefaultRedisAddr = "localhost:6379"
	DefaultTimeout   = 10 * time.Second
	testBoardURL     = "http://roster.test/board"
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// redisClient connects to the integration Redis and skips the test when it
// cannot be reached.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	db, err := strconv.Atoi(getEnvOrDefault(EnvRedisDB, "0"))
	if err != nil {
		t.Fatalf("invalid %s: %v", EnvRedisDB, err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     getEnvOrDefault(EnvRedisAddr, DefaultRedisAddr),
		Password: os.Getenv(EnvRedisPassword),
		DB:       db,
	})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return client
}

// redisSlot returns a slot on a key unique to the test, deleted on cleanup.
func redisSlot(t *testing.T, client *redis.Client) *store.RedisSlot {
	t.Helper()

	key := fmt.Sprintf("%s:it:%s", store.DefaultSlotName, uuid.NewString())
	t.Cleanup(func() { _ = client.Del(context.Background(), key).Err() })
	return store.NewRedisSlot(client, key)
}

// openBoard loads slot into a fresh store and board, as a restart would.
func openBoard(t *testing.T, slot store.Slot) (*board.Board, store.Store) {
	t.Helper()

	st := store.NewRosterStore(slot, zap.NewNop())
	st.Load(context.Background())

	b := board.New(st, mustParse(t, testBoardURL))
	return b, st
}
