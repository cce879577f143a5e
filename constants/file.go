package constants

import "strings"

// File types recorded on a certificate.
const (
	PDF   = "pdf"
	IMAGE = "image"
)

// MaxFileSizeDefault is the default upload limit (10MB).
const MaxFileSizeDefault int64 = 10 << 20

// AllowedExtensions holds the file extensions accepted for certificate uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tiff": {},
	"tif":  {},
	"bmp":  {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat returns PDF, IMAGE, or "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if !IsAllowedExt(ext) {
		return ""
	}
	if ext == "pdf" {
		return PDF
	}
	return IMAGE
}
