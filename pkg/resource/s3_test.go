package resource_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/pkg/resource"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	objects map[string]string
	listErr error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if delim != "" {
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(k),
			Size: aws.Int64(int64(len(f.objects[k]))),
		})
	}
	return out, nil
}

func newS3Source() *resource.S3 {
	return resource.NewS3WithClient("cdn", "assets", "/webapp/", &fakeS3{objects: map[string]string{
		"webapp/css/site.css":     "body{}",
		"webapp/css/print.css":    "@media print{}",
		"webapp/img/logo.svg":     "<svg/>",
		"webapp/robots.txt":       "User-agent: *",
		"other/secret.txt":        "nope",
		"webapp/css/vendor/x.css": "x",
	}})
}

func TestS3_Source(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := newS3Source()

	t.Run("open", func(t *testing.T) {
		t.Parallel()

		rc, err := src.Open(ctx, "css/site.css")
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, "body{}", string(b))
	})

	t.Run("open missing", func(t *testing.T) {
		t.Parallel()

		_, err := src.Open(ctx, "secret.txt")
		require.ErrorIs(t, err, resource.ErrNotFound)
	})

	t.Run("stat file and directory", func(t *testing.T) {
		t.Parallel()

		e, err := src.Stat(ctx, "robots.txt")
		require.NoError(t, err)
		require.False(t, e.Dir)
		require.Equal(t, int64(len("User-agent: *")), e.Size)

		d, err := src.Stat(ctx, "css")
		require.NoError(t, err)
		require.True(t, d.Dir)

		_, err = src.Stat(ctx, "js")
		require.ErrorIs(t, err, resource.ErrNotFound)
	})

	t.Run("read dir", func(t *testing.T) {
		t.Parallel()

		entries, err := src.ReadDir(ctx, "css")
		require.NoError(t, err)

		var names []string
		for _, e := range entries {
			n := e.Name
			if e.Dir {
				n += "/"
			}
			names = append(names, n)
		}
		slices.Sort(names)
		require.Equal(t, []string{"print.css", "site.css", "vendor/"}, names)
	})

	t.Run("url", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "s3://assets/webapp/img/logo.svg", src.URL("img/logo.svg"))
	})
}

func TestS3_ResolverFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := resource.New(docTree(), resource.WithArchives(newS3Source()))
	defer r.Close()

	rc, err := r.Open(ctx, "/img/logo.svg")
	require.NoError(t, err)
	require.Equal(t, "<svg/>", readAll(t, rc))

	paths, err := r.Paths(ctx, "/")
	require.NoError(t, err)
	require.Contains(t, paths, "/img/")
	require.Contains(t, paths, "/robots.txt")
	require.Contains(t, paths, "/welcome.html")
	require.NotContains(t, paths, "/other/")
}

func TestS3_ListFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	src := resource.NewS3WithClient("cdn", "assets", "", &fakeS3{listErr: boom})

	_, err := src.ReadDir(context.Background(), "css")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, resource.ErrNotFound)
}

func TestNewS3_RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := resource.NewS3("cdn", resource.S3Config{})
	require.Error(t, err)

	src, err := resource.NewS3("cdn", resource.S3Config{
		Bucket:    "assets",
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	})
	require.NoError(t, err)
	require.Equal(t, "cdn", src.Name())
	require.Equal(t, "s3://assets/a.txt", src.URL("a.txt"))
}

