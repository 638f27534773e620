package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
)

type object struct {
	contentType string
	data        []byte
	modified    time.Time
}

// ObjectStorage implements port.ObjectStorage in memory and serves the
// stored objects under /files/.
type ObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// NewObjectStorage creates a storage whose URLs start with baseURL + "/files/".
func NewObjectStorage(baseURL string) *ObjectStorage {
	return &ObjectStorage{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *ObjectStorage) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	s.objects[path] = object{contentType: contentType, data: data, modified: time.Now()}
	s.mu.Unlock()

	return s.baseURL + "/files/" + path, nil
}

func (s *ObjectStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[path]; !ok {
		return &domain.ErrNotFound{Resource: "object", ID: path}
	}
	delete(s.objects, path)
	return nil
}

func (s *ObjectStorage) PathOf(url string) (string, bool) {
	path, ok := strings.CutPrefix(url, s.baseURL+"/files/")
	return path, ok && path != ""
}

// Len returns the number of stored objects.
func (s *ObjectStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves GET /files/{path}.
func (s *ObjectStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/files/")

	s.mu.RLock()
	obj, ok := s.objects[path]
	s.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", obj.contentType)
	http.ServeContent(w, r, path, obj.modified, bytes.NewReader(obj.data))
}
