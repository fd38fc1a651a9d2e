//go:build !vips

package image

import (
	"errors"

	"go.uber.org/zap"
)

func newVipsPreprocessor(int, *zap.Logger) (Preprocessor, error) {
	return nil, errors.New("libvips preprocessor requires the vips build tag")
}
