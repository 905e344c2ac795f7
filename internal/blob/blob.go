// Package blob stores uploaded files and serves them under public URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidKey = errors.New("invalid blob key")
	ErrTooLarge   = errors.New("blob exceeds size limit")
	ErrNotFound   = errors.New("blob not found")
	ErrExists     = errors.New("blob already exists")
	// ErrUnsupportedType rejects uploads whose content is not an allowed type.
	ErrUnsupportedType = errors.New("unsupported blob content type")
)

// Blob describes a stored object. The JSON shape is what the upload routes
// return to the browser.
type Blob struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Object is an opened blob ready to be served.
type Object struct {
	Blob
	ModTime time.Time
	io.ReadSeekCloser
}

// Store is the file storage collaborator.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (Blob, error)
	Open(ctx context.Context, key string) (*Object, error)
}

// KeyPrefix namespaces every object this service writes.
const KeyPrefix = "powerchat"

var (
	nameWhitespace = regexp.MustCompile(`\s+`)
	nameUnsafe     = regexp.MustCompile(`[^A-Za-z0-9._\-]`)
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_\-][A-Za-z0-9._\-]*$`)
)

// SanitizeName reduces a client-supplied file name to a single safe path
// segment. It returns "" when nothing usable remains.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	name = nameWhitespace.ReplaceAllString(name, "_")
	name = nameUnsafe.ReplaceAllString(name, "")
	return strings.TrimLeft(name, ".")
}

// ObjectKey builds "<prefix>/<unix-ms>-<name>".
func ObjectKey(prefix, name string, now time.Time) string {
	name = SanitizeName(name)
	if name == "" {
		name = "upload"
	}
	return prefix + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + name
}

// CleanKey validates a slash separated key: no empty, dot or dot-dot
// segments and no characters outside the safe set.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if !segmentPattern.MatchString(seg) {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}
