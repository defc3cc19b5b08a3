// Package s3 is a store backend keeping one JSON object per layer in an S3
// bucket (or any S3 compatible service).
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"github.com/atlasdatatech/layersync/internal/log"
	"github.com/atlasdatatech/layersync/server/store"
)

const Name = "s3"

const (
	ConfigKeyBucket       = "bucket"
	ConfigKeyBasepath     = "basepath"
	ConfigKeyRegion       = "region"
	ConfigKeyEndpoint     = "endpoint"
	ConfigKeyAWSAccessKey = "aws_access_key_id"
	ConfigKeyAWSSecretKey = "aws_secret_access_key"
)

const DefaultRegion = "us-east-1"

func init() {
	store.Register(Name, NewStore)
}

// Store keeps objects under <basepath>/<map>/<id>.json. S3 has no
// conditional writes, so the version check and write of Put run under a
// lock: they are atomic only among writers sharing this Store.
type Store struct {
	Bucket   string
	Basepath string
	Client   s3iface.S3API

	mu sync.Mutex
}

// object is the stored form of a record.
type object struct {
	Name          string          `json:"name"`
	DisplayOnLoad bool            `json:"displayOnLoad"`
	Rank          int             `json:"rank"`
	Settings      json.RawMessage `json:"settings"`
	GeoJSON       json.RawMessage `json:"geojson"`
	Version       string          `json:"version"`
	Updated       time.Time       `json:"updated"`
}

// NewStore builds an S3 client from the config.
func NewStore(cfg store.Config) (store.Store, error) {
	var err error
	s := &Store{}
	if s.Bucket, err = cfg.String(ConfigKeyBucket, nil); err != nil {
		return nil, err
	}
	empty := ""
	if s.Basepath, err = cfg.String(ConfigKeyBasepath, &empty); err != nil {
		return nil, err
	}
	region := DefaultRegion
	if region, err = cfg.String(ConfigKeyRegion, &region); err != nil {
		return nil, err
	}
	endpoint, err := cfg.String(ConfigKeyEndpoint, &empty)
	if err != nil {
		return nil, err
	}
	accessKey, err := cfg.String(ConfigKeyAWSAccessKey, &empty)
	if err != nil {
		return nil, err
	}
	secretKey, err := cfg.String(ConfigKeyAWSSecretKey, &empty)
	if err != nil {
		return nil, err
	}

	awsConfig := aws.Config{Region: aws.String(region)}
	if endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	// without static keys the default credential chain applies
	if accessKey != "" && secretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}
	sess, err := session.NewSession(&awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	s.Client = s3.New(sess)
	log.Infof("s3 store: bucket %v, basepath %q", s.Bucket, s.Basepath)
	return s, nil
}

func (s *Store) key(mapName, id string) string {
	return path.Join(s.Basepath, mapName, id+".json")
}

func isNotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}

func (s *Store) read(ctx context.Context, key string) (object, error) {
	out, err := s.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return object{}, store.ErrNotFound
		}
		return object{}, err
	}
	defer out.Body.Close()
	body, err := ioutil.ReadAll(out.Body)
	if err != nil {
		return object{}, err
	}
	var o object
	if err := json.Unmarshal(body, &o); err != nil {
		return object{}, errors.Wrapf(err, "decoding %v", key)
	}
	return o, nil
}

func (s *Store) Get(ctx context.Context, mapName, id string) (store.Record, error) {
	o, err := s.read(ctx, s.key(mapName, id))
	if err != nil {
		return store.Record{}, err
	}
	return o.record(mapName, id), nil
}

func (o object) record(mapName, id string) store.Record {
	return store.Record{
		Map:           mapName,
		ID:            id,
		Name:          o.Name,
		DisplayOnLoad: o.DisplayOnLoad,
		Rank:          o.Rank,
		Settings:      []byte(o.Settings),
		GeoJSON:       []byte(o.GeoJSON),
		Version:       o.Version,
		Updated:       o.Updated,
	}
}

func (s *Store) Put(ctx context.Context, rec store.Record, ifVersion string) (string, error) {
	key := s.key(rec.Map, rec.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if ifVersion != "" {
		cur, err := s.read(ctx, key)
		switch {
		case err == store.ErrNotFound:
			return "", store.ErrVersionMismatch
		case err != nil:
			return "", err
		case cur.Version != ifVersion:
			return "", store.ErrVersionMismatch
		}
	}

	o := object{
		Name:          rec.Name,
		DisplayOnLoad: rec.DisplayOnLoad,
		Rank:          rec.Rank,
		Settings:      json.RawMessage(rec.Settings),
		GeoJSON:       json.RawMessage(rec.GeoJSON),
		Version:       store.NewVersion(),
		Updated:       time.Now().UTC(),
	}
	if len(o.Settings) == 0 {
		o.Settings = json.RawMessage("{}")
	}
	if len(o.GeoJSON) == 0 {
		o.GeoJSON = json.RawMessage("null")
	}
	body, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	_, err = s.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "writing %v", key)
	}
	return o.Version, nil
}

func (s *Store) Delete(ctx context.Context, mapName, id string) error {
	key := s.key(mapName, id)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return store.ErrNotFound
		}
		return err
	}
	_, err = s.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *Store) List(ctx context.Context, mapName string) ([]store.Record, error) {
	prefix := path.Join(s.Basepath, mapName) + "/"
	var keys []string
	err := s.Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			k := aws.StringValue(obj.Key)
			// skip nested prefixes: another map whose name starts with this one
			if strings.HasSuffix(k, ".json") && !strings.Contains(strings.TrimPrefix(k, prefix), "/") {
				keys = append(keys, k)
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]store.Record, 0, len(keys))
	for _, k := range keys {
		o, err := s.read(ctx, k)
		if err == store.ErrNotFound {
			// deleted since the listing
			continue
		}
		if err != nil {
			return nil, err
		}
		r := o.record(mapName, strings.TrimSuffix(path.Base(k), ".json"))
		r.GeoJSON = nil
		out = append(out, r)
	}
	store.SortByRank(out)
	return out, nil
}

func (s *Store) Close() error { return nil }
