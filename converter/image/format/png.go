package format

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"go.uber.org/zap"
	"imgconv/shared/log"
)

type Png struct {
	logger *zap.Logger
}

func MustPng(logger *zap.Logger) *Png {
	return &Png{logger: logger}
}

func (w *Png) Encode(ctx context.Context, img image.Image, _ float32) ([]byte, error) {
	logger := log.LoggerWithTrace(ctx, w.logger)
	logger.Debug("Converting image to png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logger.Error("Error converting image to png", zap.Error(err))
		return nil, err
	}

	return buf.Bytes(), nil
}
