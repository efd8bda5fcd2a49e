package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by the S3 source.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures an S3-compatible archive root.
type S3Config struct {
	// Bucket is the bucket name (required).
	Bucket string `yaml:"bucket"`
	// Prefix is the key prefix published at the application root.
	Prefix string `yaml:"prefix"`
	// Region defaults to us-east-1.
	Region string `yaml:"region"`
	// Endpoint is a custom endpoint for MinIO and other S3-compatible services.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// PathStyle enables path-style addressing (required for MinIO).
	PathStyle bool `yaml:"path_style"`
}

// S3 is a read-only source serving objects under a bucket prefix.
// Directories are derived from "/"-delimited key prefixes.
type S3 struct {
	client S3API
	name   string
	bucket string
	prefix string
}

// NewS3 builds a client from cfg.
func NewS3(name string, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("resource: s3 source %q: bucket is required", name)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			if cfg.AccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
			}
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return NewS3WithClient(name, cfg.Bucket, cfg.Prefix, s3.New(s3.Options{}, opts...)), nil
}

// NewS3WithClient uses an existing client.
func NewS3WithClient(name, bucket, prefix string, client S3API) *S3 {
	return &S3{
		client: client,
		name:   name,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3) Name() string { return s.name }

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" {
		return nil, ErrIsDir
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return out.Body, nil
}

func (s *S3) Stat(ctx context.Context, name string) (Entry, error) {
	if name == "" {
		return Entry{Name: s.name, Dir: true}, nil
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return Entry{
			Name:    path.Base(name),
			Size:    aws.ToInt64(out.ContentLength),
			ModTime: aws.ToTime(out.LastModified),
		}, nil
	}
	if !isS3NotFound(err) {
		return Entry{}, err
	}

	// No object under the exact key: it may still be a "directory".
	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.key(name) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return Entry{}, s.mapError(err)
	}
	if len(list.Contents) == 0 && len(list.CommonPrefixes) == 0 {
		return Entry{}, ErrNotFound
	}
	return Entry{Name: path.Base(name), Dir: true}, nil
}

func (s *S3) ReadDir(ctx context.Context, name string) ([]Entry, error) {
	dir := s.key(name)
	if dir != "" {
		dir += "/"
	}

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})

	var out []Entry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, s.mapError(err)
		}
		for _, cp := range page.CommonPrefixes {
			child := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), dir), "/")
			if child != "" {
				out = append(out, Entry{Name: child, Dir: true})
			}
		}
		for _, obj := range page.Contents {
			child := strings.TrimPrefix(aws.ToString(obj.Key), dir)
			// Skip directory marker objects.
			if child == "" || strings.Contains(child, "/") {
				continue
			}
			out = append(out, Entry{
				Name:    child,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *S3) URL(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3) key(name string) string {
	switch {
	case s.prefix == "":
		return name
	case name == "":
		return s.prefix
	default:
		return s.prefix + "/" + name
	}
}

func (s *S3) mapError(err error) error {
	if isS3NotFound(err) {
		return errors.Join(ErrNotFound, err)
	}
	return fmt.Errorf("resource: s3 source %q: %w", s.name, err)
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

var _ Source = (*S3)(nil)
