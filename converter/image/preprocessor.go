package image

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	PreprocessorImaging = "imaging"
	PreprocessorVips    = "vips"
)

func NewPreprocessor(kind string, maxBytes int, logger *zap.Logger) (Preprocessor, error) {
	switch kind {
	case "", PreprocessorImaging:
		return NewShrinker(maxBytes, logger), nil
	case PreprocessorVips:
		return newVipsPreprocessor(maxBytes, logger)
	}
	return nil, fmt.Errorf("unknown preprocessor: %s", kind)
}
