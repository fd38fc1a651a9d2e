package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"imgconv/shared/log"
)

// InputImage is an image as captured from a source. It is not modified
// after capture.
type InputImage struct {
	Name     string
	MimeType string
	Data     []byte
}

type Handle string

// Converted is one transcoded image. Handle stays valid until released
// through the allocator that produced it.
type Converted struct {
	Name     string
	MimeType string
	Format   Format
	Data     []byte
	Handle   Handle
}

type HandleAllocator interface {
	Acquire(name, mimeType string, data []byte) (Handle, error)
}

type CustomImage struct {
	img image.Image

	t Encoder
}

func NewCustomImage(t Encoder) *CustomImage {
	return &CustomImage{t: t}
}

func (ci *CustomImage) Decode(data []byte) (err error) {
	defer recoverInto(&err, "decoder")

	ci.img, _, err = image.Decode(bytes.NewReader(data))
	return err
}

func (ci *CustomImage) Transform(funcs ...Transform) {
	ci.img = apply(ci.img, funcs...)
}

func (ci *CustomImage) Encode(ctx context.Context, quality float32) (out []byte, err error) {
	defer recoverInto(&err, "encoder")

	return ci.t.Encode(ctx, ci.img, quality)
}

// recoverInto turns a codec panic into an error so it stays with the image
// that caused it.
func recoverInto(err *error, stage string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panic: %v", stage, r)
	}
}

type Options struct {
	Quality float32
	// FallbackOnPreprocessError continues with the original bytes when the
	// preprocessor fails instead of failing the item.
	FallbackOnPreprocessError bool
}

type Transcoder struct {
	strategy *Strategy
	pre      Preprocessor
	handles  HandleAllocator
	opts     Options

	logger *zap.Logger
}

func NewTranscoder(strategy *Strategy, pre Preprocessor, handles HandleAllocator, opts Options, logger *zap.Logger) *Transcoder {
	return &Transcoder{strategy: strategy, pre: pre, handles: handles, opts: opts, logger: logger}
}

func (t *Transcoder) Transcode(ctx context.Context, in InputImage, f Format) (*Converted, error) {
	logger := log.LoggerWithTrace(ctx, t.logger).With(zap.String("name", in.Name), zap.Stringer("format", f))

	if len(in.Data) == 0 {
		return nil, newItemError(ErrValidation, in.Name, errors.New("empty payload"))
	}
	if !IsImageType(in.MimeType) {
		return nil, newItemError(ErrValidation, in.Name, fmt.Errorf("unsupported media type %q", in.MimeType))
	}

	data := in.Data
	if t.pre != nil {
		shrunk, err := t.pre.Shrink(ctx, in.Data, in.MimeType)
		switch {
		case err == nil:
			data = shrunk
		case t.opts.FallbackOnPreprocessError && ctx.Err() == nil:
			logger.Warn("Preprocessing failed, using original bytes", zap.Error(err))
		default:
			return nil, newItemError(ErrPreprocess, in.Name, err)
		}
	}

	ci := NewCustomImage(t.strategy.Apply(f))
	if err := ci.Decode(data); err != nil {
		return nil, newItemError(ErrDecode, in.Name, err)
	}

	ci.Transform(Surface())

	out, err := ci.Encode(ctx, t.opts.Quality)
	if err != nil {
		return nil, newItemError(ErrEncode, in.Name, err)
	}

	converted := &Converted{
		Name:     DeriveName(in.Name, f),
		MimeType: f.MimeType(),
		Format:   f,
		Data:     out,
	}

	if t.handles != nil {
		h, err := t.handles.Acquire(converted.Name, converted.MimeType, out)
		if err != nil {
			logger.Error("Error allocating preview handle", zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %w", ErrResource, in.Name, err)
		}
		converted.Handle = h
	}

	logger.Debug("Converted image", zap.Int("bytes", len(out)))

	return converted, nil
}
