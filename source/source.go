package source

import (
	"errors"

	img "imgconv/converter/image"
)

var (
	ErrNotImage   = errors.New("not an image")
	ErrInvalidURL = errors.New("invalid url")
	ErrTooLarge   = errors.New("payload too large")
)

// Selection is what a source hands to the converter: images in the order
// they were picked, plus how many candidates were dropped because they did
// not declare an image media type.
type Selection struct {
	Images  []img.InputImage
	Skipped int
}

func (s *Selection) add(name, mimeType string, data []byte) {
	if !IsImageType(mimeType) {
		s.Skipped++
		return
	}
	s.Images = append(s.Images, img.InputImage{Name: name, MimeType: mimeType, Data: data})
}

func (s *Selection) Merge(other Selection) {
	s.Images = append(s.Images, other.Images...)
	s.Skipped += other.Skipped
}

func IsImageType(mimeType string) bool {
	return img.IsImageType(mimeType)
}
