package output

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/griffinclark/Dan-at-Dawn/internal/config"
)

// ObjectSink uploads documents to an S3-compatible object store.
type ObjectSink struct {
	client *minio.Client
	bucket string
	key    string
	region string
	writer Writer
}

// ParseObjectURL splits s3://bucket/key into its parts.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid object URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid object URL %q: want s3://bucket/key", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid object URL %q: missing object key", raw)
	}
	return u.Host, key, nil
}

// NewObjectSink creates a sink for an s3:// destination.
func NewObjectSink(dest string, w Writer, storage config.StorageConfig) (*ObjectSink, error) {
	bucket, key, err := ParseObjectURL(dest)
	if err != nil {
		return nil, err
	}
	if storage.Endpoint == "" {
		return nil, fmt.Errorf("%w: storage.endpoint is required for %s", config.ErrConfiguration, dest)
	}
	cli, err := minio.New(storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(storage.AccessKey, storage.SecretKey, ""),
		Secure: storage.UseSSL,
		Region: storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return &ObjectSink{client: cli, bucket: bucket, key: key, region: storage.Region, writer: w}, nil
}

func (o *ObjectSink) Put(ctx context.Context, doc *Document) error {
	var buf bytes.Buffer
	if err := o.writer.Write(&buf, doc); err != nil {
		return err
	}

	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", o.bucket, err)
	}
	if !exists {
		if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{Region: o.region}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", o.bucket, err)
		}
	}

	_, err = o.client.PutObject(ctx, o.bucket, o.key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: contentType(o.key)})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", o.String(), err)
	}
	return nil
}

func (o *ObjectSink) String() string { return "s3://" + o.bucket + "/" + o.key }

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
