package storage

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// SavedFile describes a blob written to the store.
type SavedFile struct {
	StoredPath string
	MimeType   string
	Size       int64
}

// LocalStore writes uploads under <dir>/<year>/<month>/ with generated
// names, treating the resulting path as the opaque blob key.
type LocalStore struct {
	dir        string
	maxSize    int64
	allowedExt map[string]bool
}

func NewLocalStore(dir string, maxSize int64, allowedExtensions []string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &LocalStore{
		dir:        dir,
		maxSize:    maxSize,
		allowedExt: allowed,
	}, nil
}

// Validate checks declared size and extension before any bytes are read.
func (s *LocalStore) Validate(filename string, size int64) error {
	if s.maxSize > 0 && size > s.maxSize {
		return ErrFileTooLarge
	}
	if len(s.allowedExt) > 0 && !s.allowedExt[extension(filename)] {
		return ErrTypeNotAllowed
	}
	return nil
}

// Save streams the reader to a uniquely-named file and returns its
// metadata. The size limit is enforced again while copying, so a client
// lying about Content-Length cannot overrun it.
func (s *LocalStore) Save(r io.Reader, filename string) (*SavedFile, error) {
	ext := extension(filename)
	if len(s.allowedExt) > 0 && !s.allowedExt[ext] {
		return nil, ErrTypeNotAllowed
	}

	now := time.Now()
	subdir := filepath.Join(s.dir, fmt.Sprintf("%d", now.Year()), fmt.Sprintf("%02d", now.Month()))
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload subdir failed: %w", err)
	}

	storedPath := filepath.Join(subdir, uuid.NewString()+"."+ext)
	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create stored file failed: %w", err)
	}

	limit := s.maxSize
	if limit <= 0 {
		limit = 1 << 40
	}
	written, err := io.Copy(dst, io.LimitReader(r, limit+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("write stored file failed: %w", err)
	}
	if written > limit {
		_ = os.Remove(storedPath)
		return nil, ErrFileTooLarge
	}

	mimeType := mime.TypeByExtension("." + ext)
	if mimeType == "" {
		mimeType = "application/" + ext
	}
	return &SavedFile{
		StoredPath: storedPath,
		MimeType:   mimeType,
		Size:       written,
	}, nil
}

// Delete removes a stored file; a missing file is not an error.
func (s *LocalStore) Delete(storedPath string) error {
	if err := os.Remove(storedPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete stored file failed: %w", err)
	}
	return nil
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
