package converter

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	img "imgconv/converter/image"
	"imgconv/shared/log"
)

const DefaultChunkSize = 5

type ProgressFunc func(percent int)

type Transcoder interface {
	Transcode(ctx context.Context, in img.InputImage, f img.Format) (*img.Converted, error)
}

type HandleReleaser interface {
	ReleaseAll(handles ...img.Handle)
}

// Pipeline converts batches chunk by chunk. Chunks run one after another,
// the images of a chunk run concurrently.
type Pipeline struct {
	transcoder Transcoder
	releaser   HandleReleaser
	chunkSize  int

	tracer trace.Tracer
	logger *zap.Logger
}

func NewPipeline(t Transcoder, releaser HandleReleaser, chunkSize int, logger *zap.Logger) (*Pipeline, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	return &Pipeline{
		transcoder: t,
		releaser:   releaser,
		chunkSize:  chunkSize,
		tracer:     otel.Tracer("imgconv/converter"),
		logger:     logger,
	}, nil
}

type outcome struct {
	converted *img.Converted
	err       error
}

// Run transcodes inputs into f. Item-scoped failures are recorded in the
// result and never fail the run; anything else aborts it after the current
// chunk settles, releasing every handle allocated so far.
func (p *Pipeline) Run(ctx context.Context, inputs []img.InputImage, f img.Format, progress ProgressFunc) (*BatchResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.Int("images", len(inputs)),
		attribute.String("format", f.String()),
	))
	defer span.End()

	logger := log.LoggerWithTrace(ctx, p.logger)

	result := &BatchResult{Format: f, Images: make([]*img.Converted, 0, len(inputs))}
	total := len(inputs)
	if total == 0 {
		result.Progress = 100
		return result, nil
	}

	fail := func(err error) (*BatchResult, error) {
		p.release(result.Handles())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Conversion aborted", zap.Error(err), zap.Int("converted", len(result.Images)))
		return nil, err
	}

	for start := 0; start < total; start += p.chunkSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		end := min(start+p.chunkSize, total)
		outcomes, err := p.runChunk(ctx, inputs[start:end], f)

		for i, o := range outcomes {
			switch {
			case o.converted != nil:
				result.Images = append(result.Images, o.converted)
			case o.err != nil && img.IsItemScoped(o.err):
				idx := start + i
				logger.Warn("Skipping image", zap.Int("index", idx), zap.String("name", inputs[idx].Name), zap.Error(o.err))
				result.Failures = append(result.Failures, Failure{Index: idx, Name: inputs[idx].Name, Err: o.err})
			}
		}
		if err != nil {
			return fail(err)
		}

		result.Progress = percent(end, total)
		if progress != nil {
			progress(result.Progress)
		}
	}

	span.SetAttributes(attribute.Int("converted", len(result.Images)), attribute.Int("failed", len(result.Failures)))
	logger.Info("Conversion finished",
		zap.Stringer("format", f),
		zap.Int("total", total),
		zap.Int("converted", len(result.Images)),
		zap.Int("failed", len(result.Failures)))

	return result, nil
}

func (p *Pipeline) runChunk(ctx context.Context, chunk []img.InputImage, f img.Format) ([]outcome, error) {
	outcomes := make([]outcome, len(chunk))

	var g errgroup.Group
	for i := range chunk {
		g.Go(func() error {
			c, err := p.transcode(ctx, chunk[i], f)
			outcomes[i] = outcome{converted: c, err: err}
			if err != nil && !img.IsItemScoped(err) {
				return err
			}
			return nil
		})
	}

	return outcomes, g.Wait()
}

// transcode never panics: a panic escaping the transcoder is returned as an
// error, which aborts the run.
func (p *Pipeline) transcode(ctx context.Context, in img.InputImage, f img.Format) (c *img.Converted, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Transcode", trace.WithAttributes(
		attribute.String("name", in.Name),
		attribute.String("mime_type", in.MimeType),
		attribute.Int("bytes", len(in.Data)),
	))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("transcoding %s panicked: %v", in.Name, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	c, err = p.transcoder.Transcode(ctx, in, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if c == nil {
		return nil, errors.New("transcoder returned no image")
	}

	return c, nil
}

func (p *Pipeline) release(handles []img.Handle) {
	if p.releaser != nil && len(handles) > 0 {
		p.releaser.ReleaseAll(handles...)
	}
}

func percent(done, total int) int {
	return int(math.Round(100 * float64(done) / float64(total)))
}
