package image

import (
	"context"
	"image"

	"go.uber.org/zap"
	"imgconv/converter/image/format"
)

type Encoder interface {
	Encode(ctx context.Context, img image.Image, quality float32) ([]byte, error)
}

type Strategy struct {
	m map[Format]Encoder
}

func MustStrategy(logger *zap.Logger) *Strategy {
	jpeg := format.MustJpeg(logger)

	return &Strategy{m: map[Format]Encoder{
		PNG:  format.MustPng(logger),
		JPG:  jpeg,
		JPEG: jpeg,
		WEBP: format.MustWebp(logger),
		GIF:  format.MustGif(logger),
		BMP:  format.MustBmp(logger),
	}}
}

// Apply falls back to the DefaultFormat encoder for formats it does not know.
func (s *Strategy) Apply(t Format) Encoder {
	if e, ok := s.m[t]; ok {
		return e
	}
	return s.m[DefaultFormat]
}
