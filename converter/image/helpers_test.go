package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/require"
)

type fakeHandles struct {
	mu    sync.Mutex
	next  int
	limit int
	data  map[Handle][]byte
}

func newFakeHandles(limit int) *fakeHandles {
	return &fakeHandles{limit: limit, data: map[Handle][]byte{}}
}

func (f *fakeHandles) Acquire(_, _ string, data []byte) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limit > 0 && len(f.data) >= f.limit {
		return "", errors.New("handle table full")
	}
	f.next++
	h := Handle("h" + strconv.Itoa(f.next))
	f.data[h] = data
	return h, nil
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func noise(w, h int, seed int64) *image.NRGBA {
	r := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func translucentNoise(w, h int, seed int64, alpha uint8) *image.NRGBA {
	img := noise(w, h, seed)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = alpha
	}
	return img
}

func losslessWebpBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, img, &webp.Options{Lossless: true}))
	return buf.Bytes()
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}
