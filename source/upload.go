package source

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

const UploadField = "files"

// FromMultipart reads every file part of the form field in upload order.
func FromMultipart(headers []*multipart.FileHeader) (Selection, error) {
	var sel Selection

	for _, fh := range headers {
		mimeType := baseMediaType(fh.Header.Get("Content-Type"))
		if !IsImageType(mimeType) {
			sel.Skipped++
			continue
		}

		data, err := readPart(fh)
		if err != nil {
			return Selection{}, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		sel.add(fh.Filename, mimeType, data)
	}

	return sel, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func baseMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mt
}
