//go:build vips

package image

import (
	"context"
	"fmt"

	"github.com/h2non/bimg"
	"go.uber.org/zap"
	"imgconv/shared/log"
)

// VipsShrinker is the libvips flavour of Shrinker.
type VipsShrinker struct {
	maxBytes      int
	maxIterations int

	logger *zap.Logger
}

func newVipsPreprocessor(maxBytes int, logger *zap.Logger) (Preprocessor, error) {
	return &VipsShrinker{maxBytes: maxBytes, maxIterations: defaultMaxIterations, logger: logger}, nil
}

func (s *VipsShrinker) Shrink(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	if s.maxBytes <= 0 || len(data) <= s.maxBytes {
		return data, nil
	}
	logger := log.LoggerWithTrace(ctx, s.logger)

	meta, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	t := bimg.PNG
	switch normalizeMimeType(mimeType) {
	case "image/jpeg", "image/jpg":
		if !meta.Alpha {
			t = bimg.JPEG
		}
	case "image/webp":
		t = bimg.WEBP
	}

	quality := shrinkStartQuality
	width := meta.Size.Width
	best := data

	for i := 0; i < s.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := bimg.NewImage(data).Process(bimg.Options{Type: t, Width: width, Quality: quality})
		if err != nil {
			logger.Error("Error shrinking image with libvips", zap.Error(err))
			return nil, err
		}
		if len(out) < len(best) {
			best = out
		}
		if len(out) <= s.maxBytes {
			break
		}

		width = width * 4 / 5
		if width < 1 {
			break
		}
		if t != bimg.PNG && quality > shrinkMinQuality {
			quality -= 10
		}
	}

	return best, nil
}
