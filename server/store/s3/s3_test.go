package s3_test

import (
	"os"
	"testing"

	"github.com/pborman/uuid"

	"github.com/atlasdatatech/layersync/server/store"
	"github.com/atlasdatatech/layersync/server/store/s3"
	"github.com/atlasdatatech/layersync/server/store/storetest"
)

// TESTENV:
// RUN_S3_TESTS=yes
// AWS_TEST_BUCKET=layersync-test
// AWS_REGION=us-east-1
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY, or S3_ENDPOINT for minio
func TestStore(t *testing.T) {
	if os.Getenv("RUN_S3_TESTS") != "yes" {
		t.Skip("set RUN_S3_TESTS=yes to run")
	}
	s, err := store.For(s3.Name, store.Config{
		s3.ConfigKeyBucket:       os.Getenv("AWS_TEST_BUCKET"),
		s3.ConfigKeyRegion:       os.Getenv("AWS_REGION"),
		s3.ConfigKeyEndpoint:     os.Getenv("S3_ENDPOINT"),
		s3.ConfigKeyAWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		s3.ConfigKeyAWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		// a prefix per run keeps the store empty
		s3.ConfigKeyBasepath: "layersync-test/" + uuid.New(),
	})
	if err != nil {
		t.Fatal(err)
	}
	storetest.Run(t, s)
}

func TestNewStoreRequiresBucket(t *testing.T) {
	if _, err := s3.NewStore(store.Config{}); err != store.ErrKeyRequired(s3.ConfigKeyBucket) {
		t.Errorf("expected ErrKeyRequired got %v", err)
	}
}
