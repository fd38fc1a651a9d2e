package format

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/chai2010/webp"
	"go.uber.org/zap"
	"imgconv/shared/log"
)

type Webp struct {
	logger *zap.Logger
}

func MustWebp(logger *zap.Logger) *Webp {
	return &Webp{logger: logger}
}

func (w *Webp) Encode(ctx context.Context, img image.Image, quality float32) ([]byte, error) {
	logger := log.LoggerWithTrace(ctx, w.logger)
	logger.Debug(fmt.Sprintf("Converting image to webp with quality: %f", quality))

	q := float32(clampQuality(quality))

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: q == 100, Quality: q}); err != nil {
		logger.Error("Error converting image to webp", zap.Error(err))
		return nil, err
	}

	return buf.Bytes(), nil
}
