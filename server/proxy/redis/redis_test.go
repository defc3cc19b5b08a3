package redis_test

import (
	"os"
	"testing"
	"time"

	"github.com/pborman/uuid"

	"github.com/atlasdatatech/layersync/server/proxy/redis"
)

// TESTENV:
// RUN_REDIS_TESTS=yes
// REDIS_ADDRESS=127.0.0.1:6379
func TestCache(t *testing.T) {
	if os.Getenv("RUN_REDIS_TESTS") != "yes" {
		t.Skip("set RUN_REDIS_TESTS=yes to run")
	}
	c, err := redis.New(redis.Options{
		Address:   os.Getenv("REDIS_ADDRESS"),
		KeyPrefix: "layersync-test:" + uuid.New() + ":",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, err := c.Get("k"); hit || err != nil {
		t.Fatalf("empty cache, got hit %v err %v", hit, err)
	}
	if err := c.Set("k", []byte("v"), time.Second); err != nil {
		t.Fatal(err)
	}
	val, hit, err := c.Get("k")
	if err != nil || !hit || string(val) != "v" {
		t.Errorf("get, got %q %v %v", val, hit, err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, hit, _ := c.Get("k"); hit {
		t.Errorf("entry should have expired")
	}
}

func TestNewUnreachable(t *testing.T) {
	if _, err := redis.New(redis.Options{Address: "127.0.0.1:1"}); err == nil {
		t.Errorf("expected a connection error")
	}
}
