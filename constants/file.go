package constants

import (
	"mime"
	"strings"
)

// MediaType is the declared kind of an uploaded artifact.
type MediaType string

const (
	IMAGE   MediaType = "IMAGE"
	PDF     MediaType = "PDF"
	TEXT    MediaType = "TEXT"
	ARCHIVE MediaType = "ARCHIVE"
)

// mimeTypes holds every accepted MIME type and the media type it is extracted as.
var mimeTypes = map[string]MediaType{
	"image/png":       IMAGE,
	"image/jpg":       IMAGE,
	"image/jpeg":      IMAGE,
	"image/gif":       IMAGE,
	"image/bmp":       IMAGE,
	"image/tiff":      IMAGE,
	"application/pdf": PDF,
	"text/plain":      TEXT,
	"text/csv":        TEXT,
	"application/zip": ARCHIVE,
}

// extMIME maps lowercased extensions (sans '.') to a canonical MIME type.
var extMIME = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"sms":  "text/plain",
	"csv":  "text/csv",
	"zip":  "application/zip",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME strips parameters (charset etc.) and lowercases a MIME type.
func NormalizeMIME(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// MediaTypeFromMIME resolves a declared MIME type. ok is false for unsupported types.
func MediaTypeFromMIME(mt string) (MediaType, bool) {
	t, ok := mimeTypes[NormalizeMIME(mt)]
	return t, ok
}

// MIMEFromExt returns the canonical MIME type for a file extension, or "" if unknown.
func MIMEFromExt(ext string) string {
	return extMIME[NormalizeExt(ext)]
}

// AllowedExtensions lists the extensions accepted for directory ingestion.
func AllowedExtensions() []string {
	out := make([]string, 0, len(extMIME))
	for ext := range extMIME {
		out = append(out, ext)
	}
	return out
}
