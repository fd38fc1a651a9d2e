package format

import (
	"bytes"
	"context"
	"image"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"imgconv/shared/log"
)

type Bmp struct {
	logger *zap.Logger
}

func MustBmp(logger *zap.Logger) *Bmp {
	return &Bmp{logger: logger}
}

func (w *Bmp) Encode(ctx context.Context, img image.Image, _ float32) ([]byte, error) {
	logger := log.LoggerWithTrace(ctx, w.logger)
	logger.Debug("Converting image to bmp")

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		logger.Error("Error converting image to bmp", zap.Error(err))
		return nil, err
	}

	return buf.Bytes(), nil
}
