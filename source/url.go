package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	img "imgconv/converter/image"
	"imgconv/shared/log"
)

const (
	defaultURLName   = "image"
	maxRedirectCount = 5
)

var urlPattern = regexp.MustCompile(`^(http|https)://[^ "]+$`)

type URLFetcher struct {
	timeout  time.Duration
	maxBytes int

	logger *zap.Logger
}

func NewURLFetcher(timeout time.Duration, maxBytes int, logger *zap.Logger) *URLFetcher {
	return &URLFetcher{timeout: timeout, maxBytes: maxBytes, logger: logger}
}

// Fetch checks with a HEAD request that rawURL serves an image and then
// downloads it.
func (u *URLFetcher) Fetch(ctx context.Context, rawURL string) (img.InputImage, error) {
	logger := log.LoggerWithTrace(ctx, u.logger).With(zap.String("url", rawURL))

	if rawURL == "" {
		return img.InputImage{}, fmt.Errorf("%w: please enter a URL", ErrInvalidURL)
	}
	if !urlPattern.MatchString(rawURL) {
		return img.InputImage{}, fmt.Errorf("%w: please enter a valid URL", ErrInvalidURL)
	}

	if err := ctx.Err(); err != nil {
		return img.InputImage{}, err
	}
	_, contentType, err := u.do(fiber.Head(rawURL), 0)
	if err != nil {
		logger.Error("Error checking image URL", zap.Error(err))
		return img.InputImage{}, err
	}
	mimeType := baseMediaType(contentType)
	if !IsImageType(mimeType) {
		return img.InputImage{}, fmt.Errorf("%w: URL does not point to a valid image", ErrNotImage)
	}

	if err := ctx.Err(); err != nil {
		return img.InputImage{}, err
	}
	data, _, err := u.do(fiber.Get(rawURL), u.maxBytes)
	if errors.Is(err, fasthttp.ErrBodyTooLarge) {
		return img.InputImage{}, fmt.Errorf("%w: response exceeds %d bytes", ErrTooLarge, u.maxBytes)
	}
	if err != nil {
		logger.Error("Error fetching image", zap.Error(err))
		return img.InputImage{}, err
	}

	logger.Debug("Fetched image", zap.Int("bytes", len(data)), zap.String("mime_type", mimeType))

	return img.InputImage{Name: nameFromURL(rawURL), MimeType: mimeType, Data: data}, nil
}

// do runs the request. A positive maxBytes makes the client stop reading
// once the body grows past it.
func (u *URLFetcher) do(a *fiber.Agent, maxBytes int) ([]byte, string, error) {
	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)

	if u.timeout > 0 {
		a.Timeout(u.timeout)
	}
	if maxBytes > 0 && a.HostClient != nil {
		a.MaxResponseBodySize = maxBytes
	}
	code, body, errs := a.MaxRedirectsCount(maxRedirectCount).SetResponse(resp).Bytes()
	if len(errs) > 0 {
		return nil, "", fmt.Errorf("request failed: %w", errs[0])
	}
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, "", fmt.Errorf("unexpected status %d", code)
	}

	return append([]byte(nil), body...), string(resp.Header.ContentType()), nil
}

// nameFromURL returns the text after the last slash, or "image" when the URL
// ends with one.
func nameFromURL(rawURL string) string {
	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if name == "" {
		return defaultURLName
	}
	return name
}
