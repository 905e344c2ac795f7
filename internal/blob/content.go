package blob

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// sniffLen is how much of a body http.DetectContentType looks at.
const sniffLen = 512

// imageExts lists the uploadable image types with their canonical
// extension. SVG is left out on purpose: it can carry script.
var imageExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImage detects the type of r from its content and fails with
// ErrUnsupportedType unless it is an allowed image. The returned reader
// yields the full body, sniffed prefix included.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if _, ok := imageExts[contentType]; !ok {
		return "", nil, ErrUnsupportedType
	}
	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}

// ImageName gives name the extension of contentType unless it already
// carries one that maps to the same type, so a blob is later served as what
// it really contains.
func ImageName(name, contentType string) string {
	ext, ok := imageExts[contentType]
	if !ok {
		return name
	}
	if current := strings.ToLower(path.Ext(name)); current != "" && TypeByName(current) == contentType {
		return name
	}
	return ReplaceExt(name, ext)
}

// ReplaceExt swaps the extension of name for ext.
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

// Inline reports whether a blob of contentType may render in the browser.
// Everything else is served as a download.
func Inline(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if _, ok := imageExts[mediaType]; ok {
		return true
	}
	return mediaType == "text/calendar"
}
