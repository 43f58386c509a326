package glm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/storm-lightning-align/internal/align"
	"github.com/couchcryptid/storm-lightning-align/internal/domain"
)

// ObjectClient is the slice of the S3 API the factory uses.
type ObjectClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client builds an anonymous S3 client for the public GLM export
// bucket.
func NewS3Client(region string) *s3.Client {
	return s3.New(s3.Options{
		Region:      region,
		Credentials: aws.AnonymousCredentials{},
	})
}

// Factory opens per-storm event streams over the exported objects. Each
// stream lists the keys covering the storm window up front, then downloads
// objects one at a time into the storm's cache directory.
type Factory struct {
	client ObjectClient
	bucket string
	prefix string
	cache  *Cache
	logger *slog.Logger
}

// NewFactory creates a Factory over one bucket and key prefix.
func NewFactory(client ObjectClient, bucket, prefix string, cache *Cache, logger *slog.Logger) *Factory {
	return &Factory{
		client: client,
		bucket: bucket,
		prefix: prefix,
		cache:  cache,
		logger: logger,
	}
}

// Events opens the event stream for one storm window. The caller owns the
// stream and must Close it to release the storm's cache directory.
func (f *Factory) Events(ctx context.Context, storm domain.StormInfo, w domain.Window) (align.EventSource, error) {
	keys, err := f.listKeys(ctx, w)
	if err != nil {
		return nil, err
	}
	dir, err := f.cache.Acquire(storm.Code)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("event stream opened",
		"storm", storm.Code, "objects", len(keys), "window_start", w.Start, "window_end", w.End)
	return &stream{factory: f, storm: storm.Code, dir: dir, keys: keys}, nil
}

// listKeys lists each hour prefix in the window and keeps the keys whose
// filename start time falls inside it.
func (f *Factory) listKeys(ctx context.Context, w domain.Window) ([]string, error) {
	var keys []string
	for _, prefix := range HourPrefixes(f.prefix, w) {
		var token *string
		for {
			out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(f.bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", prefix, err)
			}
			for _, obj := range out.Contents {
				if obj.Key != nil && keyInWindow(*obj.Key, w) {
					keys = append(keys, *obj.Key)
				}
			}
			if out.IsTruncated == nil || !*out.IsTruncated {
				break
			}
			token = out.NextContinuationToken
		}
	}
	return keys, nil
}

// stream walks the listed objects in order, downloading each into the
// storm's cache directory before reading it.
type stream struct {
	factory *Factory
	storm   string
	dir     string
	keys    []string
	i       int

	cur     *recordReader
	curFile *os.File
}

func (s *stream) Next(ctx context.Context) (domain.EventRecord, error) {
	for {
		if s.cur == nil {
			if s.i >= len(s.keys) {
				return domain.EventRecord{}, io.EOF
			}
			if err := s.open(ctx, s.keys[s.i]); err != nil {
				return domain.EventRecord{}, err
			}
			s.i++
		}

		ev, err := s.cur.next()
		if err == io.EOF {
			s.closeCurrent()
			continue
		}
		return ev, err
	}
}

func (s *stream) open(ctx context.Context, key string) error {
	local := filepath.Join(s.dir, path.Base(key))
	if err := s.download(ctx, key, local); err != nil {
		return err
	}

	file, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open cached object: %w", err)
	}
	reader, err := newRecordReader(file, key)
	if err != nil {
		file.Close()
		return err
	}
	s.cur, s.curFile = reader, file
	return nil
}

func (s *stream) download(ctx context.Context, key, local string) error {
	out, err := s.factory.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.factory.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create cached object: %w", err)
	}
	if _, err := io.Copy(file, out.Body); err != nil {
		file.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}
	return file.Close()
}

func (s *stream) closeCurrent() {
	if s.curFile != nil {
		s.curFile.Close()
	}
	s.cur, s.curFile = nil, nil
}

// Close releases the storm's cache directory.
func (s *stream) Close() error {
	s.closeCurrent()
	return s.factory.cache.Release(s.storm)
}
