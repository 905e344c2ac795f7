package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FSStore keeps blobs under a root directory and publishes them below
// baseURL + "/blobs/".
type FSStore struct {
	root     string
	baseURL  string
	maxBytes int64
}

// NewFSStore creates root if needed. maxBytes <= 0 disables the size cap.
func NewFSStore(root, baseURL string, maxBytes int64) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// URL returns the public location of key.
func (s *FSStore) URL(key string) string {
	return s.baseURL + "/blobs/" + key
}

func (s *FSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (Blob, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Blob{}, err
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return Blob{}, fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return Blob{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Blob{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return Blob{}, ErrTooLarge
	}
	// Link fails on an existing target, so a key is written at most once.
	if err := os.Link(tmp.Name(), target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Blob{}, ErrExists
		}
		return Blob{}, fmt.Errorf("store blob %s: %w", key, err)
	}

	if contentType == "" {
		contentType = TypeByName(key)
	}
	return Blob{URL: s.URL(key), Pathname: key, ContentType: contentType, Size: n}, nil
}

func (s *FSStore) Open(ctx context.Context, key string) (*Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat blob %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &Object{
		Blob: Blob{
			URL:         s.URL(key),
			Pathname:    key,
			ContentType: TypeByName(key),
			Size:        info.Size(),
		},
		ModTime:        info.ModTime(),
		ReadSeekCloser: f,
	}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// TypeByName maps a key's extension to a MIME type.
func TypeByName(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == ".ics" {
		return "text/calendar; charset=utf-8"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
