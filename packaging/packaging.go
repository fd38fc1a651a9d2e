package packaging

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
	img "imgconv/converter/image"
)

const ArchiveMimeType = "application/zip"

var ErrNothingToPackage = errors.New("nothing to package")

type File struct {
	Name     string
	MimeType string
	Data     []byte
}

type Download struct {
	Name     string
	MimeType string
	Data     []byte
}

func (d *Download) ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%q", d.Name)
}

// Package returns a single file untouched and zips anything larger.
func Package(files []File, f img.Format) (*Download, error) {
	switch len(files) {
	case 0:
		return nil, ErrNothingToPackage
	case 1:
		return &Download{Name: files[0].Name, MimeType: files[0].MimeType, Data: files[0].Data}, nil
	}

	data, err := Zip(files)
	if err != nil {
		return nil, err
	}

	return &Download{Name: ArchiveName(f), MimeType: ArchiveMimeType, Data: data}, nil
}

func ArchiveName(f img.Format) string {
	return "converted_images_" + f.String() + ".zip"
}

// Zip stores every file at the archive root under its own name.
func Zip(files []File) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	now := time.Now()
	for _, file := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: file.Name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", file.Name, err)
		}
		if _, err := fw.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", file.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}

func FromConverted(images []*img.Converted) []File {
	files := make([]File, 0, len(images))
	for _, c := range images {
		files = append(files, File{Name: c.Name, MimeType: c.MimeType, Data: c.Data})
	}
	return files
}
