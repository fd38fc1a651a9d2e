package service

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"imgconv/converter"
	img "imgconv/converter/image"
	"imgconv/packaging"
	"imgconv/preview"
	"imgconv/source"
)

type fakeS3 struct {
	s3iface.S3API

	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(f.objects[aws.StringValue(in.Key)])),
		ContentType: aws.String("image/png"),
	}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, _ *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for k := range f.objects {
		page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
	}
	fn(page, true)
	return nil
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		src.Set(x, 0, color.NRGBA{G: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	return buf.Bytes()
}

type part struct {
	name        string
	contentType string
	data        []byte
}

func uploads(t *testing.T, parts ...part) []*multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+source.UploadField+`"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File[source.UploadField]
}

func newTestService(t *testing.T, store *preview.Store, s3client s3iface.S3API) *ImageService {
	t.Helper()
	logger := zap.NewNop()

	tr := img.NewTranscoder(img.MustStrategy(logger), img.NewShrinker(img.DefaultMaxBytes, logger), store,
		img.Options{Quality: 92, FallbackOnPreprocessError: true}, logger)
	p, err := converter.NewPipeline(tr, store, converter.DefaultChunkSize, logger)
	require.NoError(t, err)

	var picker *source.S3Picker
	if s3client != nil {
		picker = source.NewS3Picker(s3client, "bucket", logger)
	}

	return NewImageService(p, store, source.NewURLFetcher(5*time.Second, 1<<20, logger), picker, logger)
}

func TestConvertCollectsAllSources(t *testing.T) {
	data := samplePNG(t, 10, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	store := preview.NewStore(50, 0)
	svc := newTestService(t, store, &fakeS3{objects: map[string][]byte{"dir/remote.png": data}})

	res, err := svc.Convert(context.Background(), ConvertRequest{
		Format: img.WEBP,
		Files: uploads(t,
			part{name: "a.png", contentType: "image/png", data: data},
			part{name: "notes.txt", contentType: "text/plain", data: []byte("hi")},
		),
		URLs:   []string{srv.URL + "/pics/b.png"},
		S3Keys: []string{"dir/remote.png"},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Images))
	for _, c := range res.Images {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a.webp", "b.webp", "remote.webp"}, names)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []int{100}, res.ProgressEvents)
	assert.Equal(t, 3, store.Len())

	for _, c := range res.Images {
		e, ok := svc.Preview(c.Handle)
		require.True(t, ok)
		assert.Equal(t, c.Data, e.Data)
		assert.True(t, svc.Release(c.Handle))
	}
	assert.Equal(t, 0, store.Len())
}

func TestConvertWithoutS3(t *testing.T) {
	svc := newTestService(t, preview.NewStore(10, 0), nil)

	_, err := svc.Convert(context.Background(), ConvertRequest{Format: img.PNG, S3Keys: []string{"a.png"}})
	assert.ErrorIs(t, err, ErrS3Disabled)

	_, err = svc.ListS3(context.Background(), "")
	assert.ErrorIs(t, err, ErrS3Disabled)
}

func TestConvertInvalidURL(t *testing.T) {
	svc := newTestService(t, preview.NewStore(10, 0), nil)

	_, err := svc.Convert(context.Background(), ConvertRequest{Format: img.PNG, URLs: []string{"ftp://example.com/a.png"}})
	assert.ErrorIs(t, err, source.ErrInvalidURL)
}

func TestConvertAndPackageReleasesHandles(t *testing.T) {
	data := samplePNG(t, 6, 6)
	store := preview.NewStore(10, 0)
	svc := newTestService(t, store, nil)

	d, res, err := svc.ConvertAndPackage(context.Background(), ConvertRequest{
		Format: img.JPG,
		Files: uploads(t,
			part{name: "one.png", contentType: "image/png", data: data},
			part{name: "two.png", contentType: "image/png", data: data},
		),
	})
	require.NoError(t, err)
	require.Len(t, res.Images, 2)
	assert.Equal(t, 0, store.Len())

	assert.Equal(t, "converted_images_jpg.zip", d.Name)
	assert.Equal(t, packaging.ArchiveMimeType, d.MimeType)

	zr, err := zip.NewReader(bytes.NewReader(d.Data), int64(len(d.Data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "one.jpg", zr.File[0].Name)
	assert.Equal(t, "two.jpg", zr.File[1].Name)
}

func TestConvertAndPackageNothingConverted(t *testing.T) {
	svc := newTestService(t, preview.NewStore(10, 0), nil)

	_, _, err := svc.ConvertAndPackage(context.Background(), ConvertRequest{
		Format: img.PNG,
		Files:  uploads(t, part{name: "bad.png", contentType: "image/png", data: []byte("nope")}),
	})
	assert.ErrorIs(t, err, packaging.ErrNothingToPackage)
}

func TestDownload(t *testing.T) {
	store := preview.NewStore(10, 0)
	svc := newTestService(t, store, nil)

	h, err := store.Acquire("only.gif", "image/gif", []byte("GIF89a"))
	require.NoError(t, err)

	d, err := svc.Download(context.Background(), img.GIF, []img.Handle{h})
	require.NoError(t, err)
	assert.Equal(t, "only.gif", d.Name)
	assert.Equal(t, "image/gif", d.MimeType)
	assert.Equal(t, []byte("GIF89a"), d.Data)
	assert.Equal(t, 1, store.Len())

	_, err = svc.Download(context.Background(), img.GIF, []img.Handle{h, "missing"})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestListS3(t *testing.T) {
	svc := newTestService(t, preview.NewStore(10, 0), &fakeS3{objects: map[string][]byte{"k.png": nil}})

	keys, err := svc.ListS3(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k.png"}, keys)
}
