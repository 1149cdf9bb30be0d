package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore writes attachments to a directory on disk and serves them
// under a static base URL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore ensures the upload directory exists.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}

	// Original names are untrusted; only the extension survives.
	key := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	path := filepath.Join(s.dir, key)

	f, err := os.Create(path)
	if err != nil {
		return StoredObject{}, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		_ = os.Remove(path)
		return StoredObject{}, fmt.Errorf("write upload file: %w", err)
	}

	return StoredObject{
		Key:  key,
		URL:  s.baseURL + "/" + key,
		Kind: KindForFilename(name),
		Size: size,
	}, nil
}
