// Package sink stores the emitted feature table and its run manifest, either
// on the local filesystem or in an S3 bucket.
package sink

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/okian/pitwall/pkg/logger"
)

const s3Scheme = "s3://"

// ObjectPutter is the subset of the S3 client the writer uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Writer stores byte payloads at a destination: a file path, or
// s3://bucket/key. A destination ending in .gz is gzip-compressed.
type Writer struct {
	logger   logger.Logger
	endpoint string
	s3Once   sync.Once
	s3       ObjectPutter
	s3Err    error
}

// NewWriter creates a Writer. The S3 client is built on first use from the
// default AWS configuration chain.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{logger: logger.Get().Named("sink")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores data at dest, replacing any previous content.
func (w *Writer) Write(ctx context.Context, dest string, data []byte) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("%w: empty", ErrDestination)
	}
	payload := data
	if strings.HasSuffix(dest, ".gz") {
		var err error
		if payload, err = compress(data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, dest, err)
		}
	}

	var err error
	if strings.HasPrefix(dest, s3Scheme) {
		err = w.putObject(ctx, dest, payload)
	} else {
		err = writeFile(dest, payload)
	}
	if err != nil {
		return err
	}
	w.logger.Info(ctx, "output written", logger.String("dest", dest), logger.Int("bytes", len(payload)))
	return nil
}

// compress produces a gzip stream without a name or timestamp so that equal
// input gives equal bytes.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile writes through a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// ParseS3 splits s3://bucket/key.
func ParseS3(dest string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(dest, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s: not an s3 url", ErrDestination, dest)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s: want s3://bucket/key", ErrDestination, dest)
	}
	return bucket, key, nil
}

func (w *Writer) putObject(ctx context.Context, dest string, data []byte) error {
	bucket, key, err := ParseS3(dest)
	if err != nil {
		return err
	}
	client, err := w.client(ctx)
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	}
	if strings.HasSuffix(key, ".gz") {
		in.ContentEncoding = aws.String("gzip")
	}
	if _, err := client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, dest, err)
	}
	return nil
}

func (w *Writer) client(ctx context.Context) (ObjectPutter, error) {
	w.s3Once.Do(func() {
		if w.s3 != nil {
			return
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			w.s3Err = fmt.Errorf("%w: load aws config: %v", ErrWrite, err)
			return
		}
		var s3Opts []func(*s3.Options)
		if w.endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(w.endpoint)
				o.UsePathStyle = true
			})
		}
		w.s3 = s3.NewFromConfig(cfg, s3Opts...)
	})
	return w.s3, w.s3Err
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".yaml"), strings.HasSuffix(key, ".yml"):
		return "application/yaml"
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	default:
		return "text/csv"
	}
}
