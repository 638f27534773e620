package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
)

// Local stores objects below a directory and serves them under /files/.
type Local struct {
	dir     string
	baseURL string
	files   http.Handler
}

// NewLocal creates the directory if needed.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   http.StripPrefix("/files/", http.FileServer(http.Dir(dir))),
	}, nil
}

func (l *Local) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", &domain.ErrValidation{Field: "path", Message: "Caminho inválido"}
	}
	return filepath.Join(l.dir, filepath.FromSlash(clean)), nil
}

func (l *Local) Upload(_ context.Context, path, _ string, body io.Reader) (string, error) {
	target, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	return l.baseURL + "/files/" + strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+path)), "/"), nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	target, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return &domain.ErrNotFound{Resource: "object", ID: path}
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *Local) PathOf(url string) (string, bool) {
	path, ok := strings.CutPrefix(url, l.baseURL+"/files/")
	return path, ok && path != ""
}

// ServeHTTP serves GET /files/{path}.
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.files.ServeHTTP(w, r)
}
