package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"go.uber.org/zap"
	"imgconv/converter"
	img "imgconv/converter/image"
	"imgconv/packaging"
	"imgconv/preview"
	"imgconv/shared/log"
	"imgconv/source"
)

var (
	ErrS3Disabled    = errors.New("s3 source is not configured")
	ErrUnknownHandle = errors.New("unknown preview handle")
)

type ConvertRequest struct {
	Format img.Format
	Files  []*multipart.FileHeader
	URLs   []string
	S3Keys []string
}

type ConvertResult struct {
	*converter.BatchResult

	// ProgressEvents holds every value reported while the batch ran.
	ProgressEvents []int
	Skipped        int
}

type ImageService struct {
	pipeline *converter.Pipeline
	previews *preview.Store
	urls     *source.URLFetcher
	s3       *source.S3Picker

	logger *zap.Logger
}

// NewImageService wires the conversion pipeline to its sources. s3 may be nil.
func NewImageService(pipeline *converter.Pipeline, previews *preview.Store, urls *source.URLFetcher, s3 *source.S3Picker, logger *zap.Logger) *ImageService {
	return &ImageService{pipeline: pipeline, previews: previews, urls: urls, s3: s3, logger: logger}
}

// Collect gathers the inputs of req in order: uploads, then URLs, then S3 keys.
func (i *ImageService) Collect(ctx context.Context, req ConvertRequest) (source.Selection, error) {
	sel, err := source.FromMultipart(req.Files)
	if err != nil {
		return source.Selection{}, err
	}

	for _, u := range req.URLs {
		in, err := i.urls.Fetch(ctx, u)
		if err != nil {
			return source.Selection{}, err
		}
		sel.Images = append(sel.Images, in)
	}

	if len(req.S3Keys) > 0 {
		if i.s3 == nil {
			return source.Selection{}, ErrS3Disabled
		}
		picked, err := i.s3.Pick(ctx, req.S3Keys)
		if err != nil {
			return source.Selection{}, err
		}
		sel.Merge(picked)
	}

	return sel, nil
}

// Convert runs the pipeline. The converted images keep their preview
// handles; callers release them through Release.
func (i *ImageService) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	logger := log.LoggerWithTrace(ctx, i.logger)

	sel, err := i.Collect(ctx, req)
	if err != nil {
		logger.Error("Error collecting images", zap.Error(err))
		return nil, err
	}

	res := &ConvertResult{Skipped: sel.Skipped}
	batch, err := i.pipeline.Run(ctx, sel.Images, req.Format, func(v int) {
		res.ProgressEvents = append(res.ProgressEvents, v)
		logger.Debug("Conversion progress", zap.Int("percent", v))
	})
	if err != nil {
		logger.Error("Error converting images", zap.Error(err))
		return nil, err
	}
	res.BatchResult = batch

	return res, nil
}

// ConvertAndPackage converts and packages in one step. No handles outlive
// the call.
func (i *ImageService) ConvertAndPackage(ctx context.Context, req ConvertRequest) (*packaging.Download, *ConvertResult, error) {
	res, err := i.Convert(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	defer i.previews.ReleaseAll(res.Handles()...)

	d, err := packaging.Package(packaging.FromConverted(res.Images), req.Format)
	if err != nil {
		return nil, res, err
	}

	return d, res, nil
}

// Download packages images that are still held in the preview store.
func (i *ImageService) Download(ctx context.Context, f img.Format, handles []img.Handle) (*packaging.Download, error) {
	logger := log.LoggerWithTrace(ctx, i.logger)

	files := make([]packaging.File, 0, len(handles))
	for _, h := range handles {
		e, ok := i.previews.Get(h)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
		}
		files = append(files, packaging.File{Name: e.Name, MimeType: e.MimeType, Data: e.Data})
	}

	d, err := packaging.Package(files, f)
	if err != nil {
		logger.Error("Error packaging images", zap.Error(err))
		return nil, err
	}

	logger.Info("Prepared download", zap.String("name", d.Name), zap.Int("files", len(files)))

	return d, nil
}

func (i *ImageService) Preview(h img.Handle) (preview.Entry, bool) {
	return i.previews.Get(h)
}

func (i *ImageService) Release(h img.Handle) bool {
	return i.previews.Release(h)
}

func (i *ImageService) ListS3(ctx context.Context, prefix string) ([]string, error) {
	if i.s3 == nil {
		return nil, ErrS3Disabled
	}
	return i.s3.List(ctx, prefix)
}
