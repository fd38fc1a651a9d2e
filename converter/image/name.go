package image

import "strings"

// DeriveName keeps everything before the first dot of name and appends the
// extension of f. "archive.tar.gz" becomes "archive.png", not "archive.tar.png".
func DeriveName(name string, f Format) string {
	base, _, _ := strings.Cut(name, ".")
	return base + "." + strings.ToLower(f.Extension())
}
