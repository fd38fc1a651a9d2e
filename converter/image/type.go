package image

import "strings"

type Format struct {
	s    string
	mime string
}

var (
	PNG  = Format{"png", "image/png"}
	JPG  = Format{"jpg", "image/jpeg"}
	JPEG = Format{"jpeg", "image/jpeg"}
	WEBP = Format{"webp", "image/webp"}
	GIF  = Format{"gif", "image/gif"}
	BMP  = Format{"bmp", "image/bmp"}

	DefaultFormat = PNG
)

var formats = []Format{PNG, JPG, JPEG, WEBP, GIF, BMP}

func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

func (t Format) String() string {
	if t.s == "" {
		return DefaultFormat.s
	}
	return t.s
}

// Extension is the file extension without the leading dot.
func (t Format) Extension() string {
	return t.String()
}

func (t Format) MimeType() string {
	if t.mime == "" {
		return DefaultFormat.mime
	}
	return t.mime
}

// MakeFromString never fails: unknown values resolve to DefaultFormat.
func MakeFromString(s string) Format {
	f, _ := Lookup(s)
	return f
}

// Lookup reports whether s names a supported format. The returned format is
// DefaultFormat when it does not.
func Lookup(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, f := range formats {
		if f.s == s {
			return f, true
		}
	}
	return DefaultFormat, false
}

func (t *Format) UnmarshalText(text []byte) error {
	*t = MakeFromString(string(text))
	return nil
}

func (t Format) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IsImageType reports whether mimeType declares an image, ignoring case and
// surrounding space.
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(normalizeMimeType(mimeType), "image/")
}

func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(mimeType))
}
