package terrain

import (
	"context"
	"io"
	"os"
	fpath "path/filepath"

	"cloud.google.com/go/storage"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Backend is a pluggable place to publish and fetch the raw terrain-map
// file and its pre-decoded tile cache: local disk for a single-box
// deployment, or object storage when the terrain database is shared
// across a fleet of ndterraincore instances.
type Backend interface {
	List(prefix string) (map[string]int64, error)
	OpenRead(path string) (io.ReadCloser, error)
	Store(path string, r io.Reader) (int64, error)
	Delete(path string) error
	Close() error
}

// LocalDiskBackend implements Backend against a directory on the local
// filesystem; it is the default when no remote backend is configured.
type LocalDiskBackend struct {
	Root string
}

func NewLocalDiskBackend(root string) *LocalDiskBackend { return &LocalDiskBackend{Root: root} }

func (l *LocalDiskBackend) List(prefix string) (map[string]int64, error) {
	m := make(map[string]int64)
	root := fpath.Join(l.Root, prefix)
	err := fpath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := fpath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		m[rel] = info.Size()
		return nil
	})
	if os.IsNotExist(err) {
		return m, nil
	}
	return m, err
}

func (l *LocalDiskBackend) OpenRead(path string) (io.ReadCloser, error) {
	return os.Open(fpath.Join(l.Root, path))
}

func (l *LocalDiskBackend) Store(path string, r io.Reader) (int64, error) {
	p := fpath.Join(l.Root, path)
	if err := os.MkdirAll(fpath.Dir(p), 0755); err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

func (l *LocalDiskBackend) Delete(path string) error {
	return os.Remove(fpath.Join(l.Root, path))
}

func (l *LocalDiskBackend) Close() error { return nil }

// GCSBackend implements Backend against a Google Cloud Storage bucket.
type GCSBackend struct {
	ctx    context.Context
	client *storage.Client
	bucket *storage.BucketHandle
}

func NewGCSBackend(ctx context.Context, bucketName string) (*GCSBackend, error) {
	credsJSON := os.Getenv("NDTERRAIN_GCS_CREDENTIALS")

	var opts []option.ClientOption
	if credsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSBackend{ctx: ctx, client: client, bucket: client.Bucket(bucketName)}, nil
}

func (g *GCSBackend) List(prefix string) (map[string]int64, error) {
	prefix = fpath.Clean(prefix)
	it := g.bucket.Objects(g.ctx, &storage.Query{Projection: storage.ProjectionNoACL, Prefix: prefix})

	m := make(map[string]int64)
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			return m, nil
		} else if err != nil {
			return nil, err
		}
		if fpath.Clean(obj.Name) != prefix {
			m[obj.Name] = obj.Size
		}
	}
}

func (g *GCSBackend) OpenRead(path string) (io.ReadCloser, error) {
	return g.bucket.Object(path).NewReader(g.ctx)
}

func (g *GCSBackend) Store(path string, r io.Reader) (int64, error) {
	w := g.bucket.Object(path).NewWriter(g.ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		return n, err
	}
	return n, w.Close()
}

func (g *GCSBackend) Delete(path string) error { return g.bucket.Object(path).Delete(g.ctx) }

func (g *GCSBackend) Close() error { return g.client.Close() }

// S3Backend implements Backend against an S3-compatible bucket, for
// deployments that keep the shared terrain database next to their
// other AWS infrastructure instead of GCS.
type S3Backend struct {
	ctx    context.Context
	client *s3.Client
	bucket string
}

func NewS3Backend(ctx context.Context, bucketName string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Backend{ctx: ctx, client: s3.NewFromConfig(cfg), bucket: bucketName}, nil
}

func (b *S3Backend) List(prefix string) (map[string]int64, error) {
	m := make(map[string]int64)
	var token *string
	for {
		out, err := b.client.ListObjectsV2(b.ctx, &s3.ListObjectsV2Input{
			Bucket:            &b.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			m[*obj.Key] = *obj.Size
		}
		if out.NextContinuationToken == nil {
			return m, nil
		}
		token = out.NextContinuationToken
	}
}

func (b *S3Backend) OpenRead(path string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(b.ctx, &s3.GetObjectInput{Bucket: &b.bucket, Key: &path})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (b *S3Backend) Store(path string, r io.Reader) (int64, error) {
	cw := &countingReader{r: r}
	_, err := b.client.PutObject(b.ctx, &s3.PutObjectInput{Bucket: &b.bucket, Key: &path, Body: cw})
	return cw.n, err
}

func (b *S3Backend) Delete(path string) error {
	_, err := b.client.DeleteObject(b.ctx, &s3.DeleteObjectInput{Bucket: &b.bucket, Key: &path})
	return err
}

func (b *S3Backend) Close() error { return nil }

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
