package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestMainWithLogLevel runs the package tests after applying the log level.
//
//	func TestMain(m *testing.M) {
//		testutil.TestMainWithLogLevel(m)
//	}
//
//	go test ./... -loglevel=debug
func TestMainWithLogLevel(m *testing.M) {
	SetLogLevelFromFlag()
	os.Exit(m.Run())
}

// RedisClient connects to the Redis named by JSONSYNC_REDIS_ADDR, or skips
// the test when it is unset or unreachable. The selected database is flushed
// when the test ends.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("JSONSYNC_REDIS_ADDR")
	if addr == "" {
		t.Skip("JSONSYNC_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = client.Close()
	})
	return client
}

// MongoDatabase connects to the MongoDB named by JSONSYNC_MONGO_URI and
// returns a scratch database that is dropped when the test ends. The test is
// skipped when the variable is unset or the server is unreachable.
func MongoDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("JSONSYNC_MONGO_URI")
	if uri == "" {
		t.Skip("JSONSYNC_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("mongo connect failed: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Skipf("mongo at %s unreachable: %v", uri, err)
	}

	db := client.Database("jsonsync_test_" + strconv.FormatInt(time.Now().UnixNano(), 36))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}
