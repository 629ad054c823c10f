package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aretasg/surechembl-mini-client/pkg/types"
)

// S3Config holds configuration for the S3 feed-mirror backend.
type S3Config struct {
	// Bucket is the bucket holding the mirrored feed tree.
	Bucket string
	// Region is the AWS region.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Conn implements Conn over an S3-compatible bucket. The feed's directory
// hierarchy maps onto object key prefixes; the current directory is a prefix.
type S3Conn struct {
	client *s3.Client
	bucket string
	cwd    string
}

// DialS3 creates a session against the mirrored feed bucket.
func DialS3(ctx context.Context, cfg S3Config) (*S3Conn, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %v", types.ErrConnection, err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	conn := &S3Conn{client: client, bucket: cfg.Bucket}
	if err := conn.NoOp(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// NewS3ConnWithClient creates a session with a pre-configured client.
func NewS3ConnWithClient(client *s3.Client, bucket string) *S3Conn {
	return &S3Conn{client: client, bucket: bucket}
}

// List returns the immediate children (objects and sub-prefixes) of dir.
func (c *S3Conn) List(ctx context.Context, dir string) ([]string, error) {
	prefix := resolvePath(c.cwd, dir)
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]struct{})
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", types.ErrConnection, dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			seen[name] = struct{}{}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ChangeDir moves the session to path, verifying that the prefix exists.
func (c *S3Conn) ChangeDir(ctx context.Context, path string) error {
	prefix := resolvePath(c.cwd, path)
	if prefix == "" {
		c.cwd = ""
		return nil
	}

	out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("%w: cwd %s: %v", types.ErrConnection, path, err)
	}
	if aws.ToInt32(out.KeyCount) == 0 {
		return fmt.Errorf("%w: directory %s", types.ErrNotFound, path)
	}

	c.cwd = prefix
	return nil
}

// CurrentDir returns the current prefix as an absolute path.
func (c *S3Conn) CurrentDir() (string, error) {
	return "/" + c.cwd, nil
}

// Retrieve downloads the named object into localPath.
func (c *S3Conn) Retrieve(ctx context.Context, name, localPath string) error {
	key := resolvePath(c.cwd, name)

	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return fmt.Errorf("%w: object %s", types.ErrNotFound, key)
		}
		return fmt.Errorf("%w: get %s: %v", types.ErrConnection, key, err)
	}
	defer resp.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("%w: transfer %s: %v", types.ErrConnection, key, err)
	}
	return nil
}

// NoOp verifies the bucket is reachable.
func (c *S3Conn) NoOp(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("%w: head bucket %s: %v", types.ErrConnection, c.bucket, err)
	}
	return nil
}

// Quit is a no-op; the S3 client holds no persistent session.
func (c *S3Conn) Quit() error {
	return nil
}

// S3Dialer opens S3 sessions with a fixed configuration.
type S3Dialer struct {
	Config S3Config
}

// Dial opens a new session against the configured bucket.
func (d *S3Dialer) Dial(ctx context.Context) (Conn, error) {
	return DialS3(ctx, d.Config)
}
