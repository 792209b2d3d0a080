package redissink

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/sinkflow/internal/testutil"
	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
	"github.com/vnykmshr/sinkflow/pkg/streaming/writable"
)

// redisClient returns a client for SINKFLOW_REDIS_ADDR or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("SINKFLOW_REDIS_ADDR")
	if addr == "" {
		t.Skip("SINKFLOW_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	return rdb
}

func streamKey(t *testing.T) string {
	return "sinkflow:test:" + t.Name() + ":" + time.Now().Format("150405.000000")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", DefaultConfig("events"), false},
		{"bare stream", Config{Stream: "events"}, false},
		{"missing stream", Config{}, true},
		{"negative maxlen", Config{Stream: "events", MaxLen: -1}, true},
		{"negative timeout", Config{Stream: "events", Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				return
			}
			testutil.AssertNoError(t, err)
		})
	}
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New[[]byte](nil, DefaultConfig("events"))
	if !gferrors.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDefaultsApplied(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	sink, err := New[string](rdb, Config{Stream: "events"})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, sink.config.Field, "data")
	testutil.AssertEqual(t, sink.config.Timeout, 500*time.Millisecond)
}

func TestUnreachableRedisErrorsStream(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	sink, err := New[[]byte](rdb, DefaultConfig("events"))
	testutil.AssertNoError(t, err)

	stream, err := writable.New[[]byte](sink)
	testutil.AssertNoError(t, err)
	w, err := stream.GetWriter()
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	err = w.Closed().Wait(ctx)
	var redisErr *RedisError
	if !errors.As(err, &redisErr) {
		t.Fatalf("expected *RedisError, got %v", err)
	}
	testutil.AssertEqual(t, redisErr.Operation, "start")
	testutil.AssertEqual(t, stream.State(), writable.Errored)
}

func TestAppendEntries(t *testing.T) {
	rdb := redisClient(t)
	key := streamKey(t)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	cfg := DefaultConfig(key)
	cfg.EndMarker = "EOF"
	sink, err := New[string](rdb, cfg)
	testutil.AssertNoError(t, err)

	stream, err := writable.New[string](sink)
	testutil.AssertNoError(t, err)
	w, err := stream.GetWriter()
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	for _, chunk := range []string{"one", "two", "three"} {
		testutil.AssertNoError(t, w.Ready().Wait(ctx))
		w.Write(chunk)
	}
	testutil.AssertNoError(t, w.Close().Wait(ctx))

	entries, err := rdb.XRange(ctx, key, "-", "+").Result()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(entries), 4)

	want := []string{"one", "two", "three", "EOF"}
	for i, e := range entries {
		testutil.AssertEqual(t, e.Values["data"].(string), want[i])
	}

	stats := sink.Stats()
	testutil.AssertEqual(t, stats.Entries, int64(3))
	testutil.AssertEqual(t, stats.BytesWritten, int64(len("onetwothree")))
	testutil.AssertEqual(t, stats.LastID, entries[2].ID)
}

func TestDeleteOnAbort(t *testing.T) {
	rdb := redisClient(t)
	key := streamKey(t)
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	cfg := DefaultConfig(key)
	cfg.DeleteOnAbort = true
	sink, err := New[[]byte](rdb, cfg)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sink.Write(ctx, []byte("partial"), nil))
	n, err := rdb.Exists(ctx, key).Result()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, int64(1))

	testutil.AssertNoError(t, sink.Abort(ctx, errors.New("cancelled upstream")))
	n, err = rdb.Exists(ctx, key).Result()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, int64(0))
}
