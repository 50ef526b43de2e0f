// Package blob copies uploaded logs to S3 and opens s3:// paths for workers
// that do not share the server's disk.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pkg.jsn.cam/logmate/internal/config"
	"pkg.jsn.cam/logmate/pkg/logmate"
)

// Scheme prefixes task paths that live in S3.
const Scheme = "s3://"

var ErrNoStore = errors.New("s3 path given but no blob store configured")

// S3 stores and fetches log files in one bucket.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, cfg config.BlobConfig) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultBlobTimeout
	}

	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: timeout}, nil
}

// Put uploads body under prefix+name and returns its s3:// URI.
func (s *S3) Put(ctx context.Context, name string, body io.Reader, size int64) (string, error) {
	key := s.prefix + name

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("put s3 object %s: %w", key, err)
	}
	return Scheme + s.bucket + "/" + key, nil
}

// Open fetches the object named by uri, decompressing by its extension.
// A missing object is reported as logmate.ErrFileNotFound.
func (s *S3) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, ok := ParseURI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid s3 uri %q", uri)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", logmate.ErrFileNotFound, uri)
		}
		return nil, fmt.Errorf("get s3 object %s: %w", uri, err)
	}
	return logmate.Decompress(key, out.Body)
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, Scheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Opener routes s3:// paths to store and everything else to local.
// store may be nil, in which case s3:// paths fail with ErrNoStore.
func Opener(store *S3, local logmate.Opener) logmate.Opener {
	return func(ctx context.Context, path string) (io.ReadCloser, error) {
		if !strings.HasPrefix(path, Scheme) {
			return local(ctx, path)
		}
		if store == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStore, path)
		}
		return store.Open(ctx, path)
	}
}
