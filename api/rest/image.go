package rest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"imgconv/api/model"
	"imgconv/config"
	img "imgconv/converter/image"
	"imgconv/packaging"
	"imgconv/service"
	"imgconv/shared/log"
	"imgconv/source"
)

const convertTimeout = 5 * time.Minute

type ImageController struct {
	cfg     *config.Config
	service *service.ImageService
	logger  *zap.Logger
}

func NewImageController(app *fiber.App, cfg *config.Config, service *service.ImageService, logger *zap.Logger) *ImageController {
	i := &ImageController{service: service, cfg: cfg, logger: logger}

	app.Get("/formats", i.Formats)
	app.Post("/convert", i.Convert)
	app.Post("/convert/download", i.ConvertDownload)
	app.Post("/download", i.Download)
	app.Get("/previews/:handle", i.Preview)
	app.Delete("/previews/:handle", i.Release)
	app.Get("/s3/objects", i.ListS3)

	return i
}

// Formats lists supported target formats
//
//	@Summary	List target formats
//	@Tags		image
//	@Produce	json
//	@Success	200	{array}	model.FormatResponse
//	@Router		/formats [get]
func (i *ImageController) Formats(c *fiber.Ctx) error {
	formats := img.Formats()
	out := make([]model.FormatResponse, 0, len(formats))
	for _, f := range formats {
		out = append(out, model.FormatResponse{Name: f.String(), MimeType: f.MimeType()})
	}
	return c.JSON(out)
}

// Convert images
//
//	@Summary		Convert a batch of images
//	@Description	Converts uploaded files, remote URLs and S3 objects into the target format. Converted images stay available under their preview handles until released.
//	@Tags			image
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			format	formData	string	false	"Target format"
//	@Param			files	formData	file	false	"Images"
//	@Param			urls	formData	string	false	"Image URLs"
//	@Param			s3_keys	formData	string	false	"S3 object keys"
//	@Success		200		{object}	model.ConvertResponse
//	@Router			/convert [post]
func (i *ImageController) Convert(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), convertTimeout)
	defer cancel()
	logger := log.LoggerWithTrace(ctx, i.logger)

	req, err := i.parseConvertRequest(c)
	if err != nil {
		logger.Error("Error parsing convert request", zap.Error(err))
		return err
	}

	res, err := i.service.Convert(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toConvertResponse(res, req.Format))
}

// ConvertDownload converts and downloads images
//
//	@Summary		Convert and download
//	@Description	Same input as /convert. Responds with the single converted file or a zip archive of all of them.
//	@Tags			image
//	@Accept			multipart/form-data
//	@Produce		image/png,image/jpeg,image/webp,image/gif,image/bmp,application/zip
//	@Success		200	{file}	file	"Converted image or archive"
//	@Router			/convert/download [post]
func (i *ImageController) ConvertDownload(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), convertTimeout)
	defer cancel()
	logger := log.LoggerWithTrace(ctx, i.logger)

	req, err := i.parseConvertRequest(c)
	if err != nil {
		logger.Error("Error parsing convert request", zap.Error(err))
		return err
	}

	d, res, err := i.service.ConvertAndPackage(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}

	c.Set("X-Converted-Count", strconv.Itoa(len(res.Images)))
	c.Set("X-Failed-Count", strconv.Itoa(len(res.Failures)))

	return sendDownload(c, d)
}

// Download previews
//
//	@Summary	Download converted images
//	@Tags		image
//	@Accept		json
//	@Produce	image/png,image/jpeg,image/webp,image/gif,image/bmp,application/zip
//	@Param		request	body	model.DownloadRequest	true	"Handles to package"
//	@Success	200		{file}	file	"Converted image or archive"
//	@Router		/download [post]
func (i *ImageController) Download(c *fiber.Ctx) error {
	logger := log.LoggerWithTrace(c.UserContext(), i.logger)

	var body model.DownloadRequest
	if err := c.BodyParser(&body); err != nil {
		logger.Error("Error parsing download request", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	handles := make([]img.Handle, 0, len(body.Handles))
	for _, h := range body.Handles {
		handles = append(handles, img.Handle(h))
	}

	d, err := i.service.Download(c.UserContext(), img.MakeFromString(body.Format), handles)
	if err != nil {
		return toHTTPError(err)
	}

	return sendDownload(c, d)
}

// Preview image
//
//	@Summary	Serve a converted image
//	@Tags		preview
//	@Produce	image/png,image/jpeg,image/webp,image/gif,image/bmp
//	@Param		handle	path	string	true	"Preview handle"
//	@Success	200		{file}	file	"Converted image"
//	@Router		/previews/{handle} [get]
func (i *ImageController) Preview(c *fiber.Ctx) error {
	e, ok := i.service.Preview(img.Handle(c.Params("handle")))
	if !ok {
		return fiber.ErrNotFound
	}

	c.Set(fiber.HeaderContentType, e.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", e.Name))
	c.Set(fiber.HeaderCacheControl, fmt.Sprintf("private, max-age=%d", int(i.cfg.CacheTTL().Seconds())))

	return c.Send(e.Data)
}

// Release preview
//
//	@Summary	Release a preview handle
//	@Tags		preview
//	@Param		handle	path	string	true	"Preview handle"
//	@Success	204
//	@Router		/previews/{handle} [delete]
func (i *ImageController) Release(c *fiber.Ctx) error {
	if !i.service.Release(img.Handle(c.Params("handle"))) {
		return fiber.ErrNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListS3 lists bucket objects
//
//	@Summary	List objects of the configured bucket
//	@Tags		source
//	@Produce	json
//	@Param		prefix	query		string	false	"Key prefix"
//	@Success	200		{object}	model.ObjectListResponse
//	@Router		/s3/objects [get]
func (i *ImageController) ListS3(c *fiber.Ctx) error {
	keys, err := i.service.ListS3(c.UserContext(), c.Query("prefix"))
	if err != nil {
		return toHTTPError(err)
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(model.ObjectListResponse{Keys: keys})
}

func (i *ImageController) parseConvertRequest(c *fiber.Ctx) (service.ConvertRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.ConvertRequest{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	req := service.ConvertRequest{
		Format: img.DefaultFormat,
		Files:  form.File[source.UploadField],
		URLs:   form.Value["urls"],
		S3Keys: form.Value["s3_keys"],
	}
	if v := form.Value["format"]; len(v) > 0 {
		req.Format = img.MakeFromString(v[0])
	}

	return req, nil
}

func sendDownload(c *fiber.Ctx, d *packaging.Download) error {
	c.Set(fiber.HeaderContentType, d.MimeType)
	c.Set(fiber.HeaderContentDisposition, d.ContentDisposition())

	return c.Send(d.Data)
}

func toConvertResponse(res *service.ConvertResult, f img.Format) model.ConvertResponse {
	out := model.ConvertResponse{
		Format:   f.String(),
		Progress: res.ProgressEvents,
		Images:   make([]model.ImageResponse, 0, len(res.Images)),
		Failures: make([]model.FailureResponse, 0, len(res.Failures)),
		Skipped:  res.Skipped,
		Message:  res.Message(),
	}
	if len(out.Progress) == 0 {
		out.Progress = []int{res.BatchResult.Progress}
	}

	for _, ci := range res.Images {
		out.Images = append(out.Images, model.ImageResponse{
			Name:       ci.Name,
			MimeType:   ci.MimeType,
			Format:     ci.Format.String(),
			Size:       len(ci.Data),
			Handle:     string(ci.Handle),
			PreviewURL: "/previews/" + string(ci.Handle),
		})
	}
	for _, fl := range res.Failures {
		out.Failures = append(out.Failures, model.FailureResponse{Name: fl.Name, Error: fl.Err.Error()})
	}
	if res.Skipped > 0 {
		out.Message += " Some files were skipped because they are not images."
	}

	return out
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, source.ErrInvalidURL),
		errors.Is(err, source.ErrNotImage),
		errors.Is(err, source.ErrTooLarge),
		errors.Is(err, service.ErrS3Disabled),
		errors.Is(err, packaging.ErrNothingToPackage):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownHandle):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, img.ErrResource):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	}
	return err
}

// ErrorHandler renders errors as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(model.ErrorResponse{Error: err.Error()})
}
