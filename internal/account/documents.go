package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DocumentStore keeps the license documents uploaded at provider registration.
type DocumentStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (ref string, err error)
	Remove(ctx context.Context, ref string) error
}

type DiskDocumentStore struct {
	dir string
}

// NewDiskDocumentStore creates dir if needed.
func NewDiskDocumentStore(dir string) (*DiskDocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskDocumentStore{dir: dir}, nil
}

// Save writes r under a random hex name keeping the original extension.
func (s *DiskDocumentStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.New()
	ref := strings.ReplaceAll(id.String(), "-", "") + strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close document: %w", err)
	}
	return ref, nil
}

func (s *DiskDocumentStore) Remove(_ context.Context, ref string) error {
	if ref == "" || ref != filepath.Base(ref) {
		return fmt.Errorf("invalid document ref %q", ref)
	}
	err := os.Remove(filepath.Join(s.dir, ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
