package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"go.uber.org/zap"
	"imgconv/shared/log"
)

const (
	DefaultMaxBytes      = 1 << 20
	defaultMaxIterations = 10
	shrinkStartQuality   = 90
	shrinkMinQuality     = 40
)

type Preprocessor interface {
	Shrink(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// Shrinker recompresses images whose encoded size exceeds maxBytes. Each
// pass scales the image down by a fifth and, for photographic sources,
// lowers the JPEG quality. The smallest attempt is returned when the budget
// cannot be met.
type Shrinker struct {
	maxBytes      int
	maxIterations int

	logger *zap.Logger
}

func NewShrinker(maxBytes int, logger *zap.Logger) *Shrinker {
	return &Shrinker{maxBytes: maxBytes, maxIterations: defaultMaxIterations, logger: logger}
}

func (s *Shrinker) Shrink(ctx context.Context, data []byte, mimeType string) (_ []byte, err error) {
	defer recoverInto(&err, "preprocessor")

	if s.maxBytes <= 0 || len(data) <= s.maxBytes {
		return data, nil
	}
	logger := log.LoggerWithTrace(ctx, s.logger)

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode for shrink: %w", err)
	}

	codec := shrinkCodecFor(src, mimeType)
	quality := shrinkStartQuality
	width := src.Bounds().Dx()
	current := src
	best := data

	for i := 0; i < s.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := codec.encode(current, quality)
		if err != nil {
			return nil, fmt.Errorf("recompress: %w", err)
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
		if codec.lossy() && quality > shrinkMinQuality {
			quality -= 10
		}
		current = apply(src, WithWidth(width))
	}

	logger.Debug("Shrunk image",
		zap.Stringer("codec", codec),
		zap.Int("from_bytes", len(data)),
		zap.Int("to_bytes", len(best)),
		zap.Int("max_bytes", s.maxBytes))

	return best, nil
}

type shrinkCodec int

const (
	shrinkPNG shrinkCodec = iota
	shrinkJPEG
	shrinkWebP
)

func (c shrinkCodec) String() string {
	switch c {
	case shrinkJPEG:
		return "jpeg"
	case shrinkWebP:
		return "webp"
	}
	return "png"
}

func (c shrinkCodec) lossy() bool {
	return c != shrinkPNG
}

// shrinkCodecFor keeps the source family: JPEG stays JPEG, WebP stays WebP
// (alpha included), everything else is recompressed as PNG. JPEG is only
// used for sources without transparency.
func shrinkCodecFor(src image.Image, mimeType string) shrinkCodec {
	switch normalizeMimeType(mimeType) {
	case "image/jpeg", "image/jpg":
		if isOpaque(src) {
			return shrinkJPEG
		}
	case "image/webp":
		return shrinkWebP
	}
	return shrinkPNG
}

func (c shrinkCodec) encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case shrinkJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case shrinkWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, err
		}
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
