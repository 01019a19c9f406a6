package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EvidenceStorage persists uploaded proof files on disk under a base
// directory and hands out public references of the form
// <publicPath>/<stored name>.
type EvidenceStorage struct {
	baseDir    string
	publicPath string
}

// NewEvidenceStorage ensures the base directory exists and returns a handle.
func NewEvidenceStorage(baseDir, publicPath string) (*EvidenceStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if publicPath == "" {
		publicPath = "/uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &EvidenceStorage{baseDir: baseDir, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

// PublicPath returns the URL prefix under which stored files are served.
func (s *EvidenceStorage) PublicPath() string {
	return s.publicPath
}

// Dir returns the backing directory.
func (s *EvidenceStorage) Dir() string {
	return s.baseDir
}

// SaveStream stores the reader's content under a collision-resistant name
// and returns the public reference for the stored file.
func (s *EvidenceStorage) SaveStream(originalName string, r io.Reader) (string, error) {
	name := StoredName(originalName)
	dst := filepath.Join(s.baseDir, name)
	file, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write evidence file: %w", err)
	}
	return s.publicPath + "/" + name, nil
}

// Open returns a read-only handle for a stored file. The argument may be
// either a public reference or a bare stored name.
func (s *EvidenceStorage) Open(ref string) (*os.File, error) {
	file, err := os.Open(filepath.Join(s.baseDir, s.fileName(ref)))
	if err != nil {
		return nil, fmt.Errorf("open evidence file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *EvidenceStorage) Delete(ref string) error {
	if err := os.Remove(filepath.Join(s.baseDir, s.fileName(ref))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete evidence file: %w", err)
	}
	return nil
}

func (s *EvidenceStorage) fileName(ref string) string {
	name := strings.TrimPrefix(ref, s.publicPath+"/")
	return path.Base(name)
}

// StoredName derives the on-disk name for an upload: a nanosecond timestamp
// plus a random suffix, with the sanitised original name kept for operators
// browsing the directory.
func StoredName(originalName string) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], SanitizeName(originalName))
}

// SanitizeName strips any path components and characters unsafe for a URL
// path segment from an uploaded filename.
func SanitizeName(name string) string {
	name = path.Base(filepath.ToSlash(name))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	sanitized := strings.Trim(b.String(), ".")
	if sanitized == "" {
		return "file"
	}
	return sanitized
}
