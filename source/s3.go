package source

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"imgconv/shared/log"
)

const s3FetchConcurrency = 4

type S3Picker struct {
	client s3iface.S3API
	bucket string

	logger *zap.Logger
}

func NewS3Picker(client s3iface.S3API, bucket string, logger *zap.Logger) *S3Picker {
	return &S3Picker{client: client, bucket: bucket, logger: logger}
}

// List returns the keys under prefix, in the order S3 reports them.
func (p *S3Picker) List(ctx context.Context, prefix string) ([]string, error) {
	logger := log.LoggerWithTrace(ctx, p.logger)

	var keys []string
	input := &s3.ListObjectsV2Input{Bucket: aws.String(p.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	err := p.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		logger.Error("Error listing objects", zap.String("bucket", p.bucket), zap.Error(err))
		return nil, err
	}

	return keys, nil
}

// Pick downloads keys concurrently and returns them in the requested order.
// Objects without an image content type are skipped.
func (p *S3Picker) Pick(ctx context.Context, keys []string) (Selection, error) {
	logger := log.LoggerWithTrace(ctx, p.logger)

	type object struct {
		contentType string
		data        []byte
	}
	objects := make([]object, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3FetchConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			out, err := p.client.GetObjectWithContext(gctx, &s3.GetObjectInput{
				Bucket: aws.String(p.bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("get object %s: %w", key, err)
			}
			defer out.Body.Close()

			data, err := io.ReadAll(out.Body)
			if err != nil {
				return fmt.Errorf("read object %s: %w", key, err)
			}
			objects[i] = object{contentType: aws.StringValue(out.ContentType), data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("Error picking objects", zap.String("bucket", p.bucket), zap.Error(err))
		return Selection{}, err
	}

	var sel Selection
	for i, key := range keys {
		sel.add(path.Base(key), baseMediaType(objects[i].contentType), objects[i].data)
	}

	logger.Debug("Picked objects", zap.Int("images", len(sel.Images)), zap.Int("skipped", sel.Skipped))

	return sel, nil
}
