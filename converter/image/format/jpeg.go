package format

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"go.uber.org/zap"
	"imgconv/shared/log"
)

type Jpeg struct {
	logger *zap.Logger
}

func MustJpeg(logger *zap.Logger) *Jpeg {
	return &Jpeg{logger: logger}
}

func (w *Jpeg) Encode(ctx context.Context, img image.Image, quality float32) ([]byte, error) {
	logger := log.LoggerWithTrace(ctx, w.logger)
	logger.Debug(fmt.Sprintf("Converting image to jpeg with quality: %f", quality))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		logger.Error("Error converting image to jpeg", zap.Error(err))
		return nil, err
	}

	return buf.Bytes(), nil
}
