package format

import (
	"bytes"
	"context"
	"image"
	"image/gif"

	"go.uber.org/zap"
	"imgconv/shared/log"
)

type Gif struct {
	logger *zap.Logger
}

func MustGif(logger *zap.Logger) *Gif {
	return &Gif{logger: logger}
}

// Encode writes a single frame quantized to 256 colours.
func (w *Gif) Encode(ctx context.Context, img image.Image, _ float32) ([]byte, error) {
	logger := log.LoggerWithTrace(ctx, w.logger)
	logger.Debug("Converting image to gif")

	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		logger.Error("Error converting image to gif", zap.Error(err))
		return nil, err
	}

	return buf.Bytes(), nil
}
