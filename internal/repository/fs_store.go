package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"RateCast/internal/domain/models"
	domrepo "RateCast/internal/domain/repository"
)

const catalogFile = "catalog.json"

// FSStore keeps the model catalog and serialized artifacts on the local
// filesystem under a single base directory. Catalog writes go through a
// temp file + rename so readers never see a torn document.
type FSStore struct {
	base string
	mu   sync.Mutex
}

func NewFSStore(base string) (*FSStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) ReadCatalog(_ context.Context) (models.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.base, catalogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return models.Catalog{}, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var c models.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return c, nil
}

func (s *FSStore) WriteCatalog(_ context.Context, c models.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return s.atomicWrite(filepath.Join(s.base, catalogFile), data)
}

func (s *FSStore) WriteArtifact(_ context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	return s.atomicWrite(full, data)
}

func (s *FSStore) ReadArtifact(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (s *FSStore) DeleteArtifact(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// resolve joins path under base and rejects escapes.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if clean == "" || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid artifact path %q", path)
	}
	return filepath.Join(s.base, clean), nil
}

func (s *FSStore) atomicWrite(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

var (
	_ domrepo.CatalogStore  = (*FSStore)(nil)
	_ domrepo.ArtifactStore = (*FSStore)(nil)
)
