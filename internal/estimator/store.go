package estimator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ModelStore persists fitted models.
type ModelStore interface {
	Load(ctx context.Context) (*Ridge, error)
	Save(ctx context.Context, model *Ridge) error
}

// FileStore keeps a single model as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the model. It returns ErrModelNotFound when no file exists.
func (s *FileStore) Load(_ context.Context) (*Ridge, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	var model Ridge
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decoding model file: %w", err)
	}
	if len(model.Coef) == 0 || len(model.Coef) != len(model.Columns) {
		return nil, fmt.Errorf("model file has %d coefficients for %d columns, %w", len(model.Coef), len(model.Columns), ErrFeatureLenMismatch)
	}
	return &model, nil
}

// Save writes the model atomically by renaming a temporary file over the
// target.
func (s *FileStore) Save(_ context.Context, model *Ridge) error {
	if model == nil || model.Coef == nil {
		return ErrNotFitted
	}

	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("creating temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing model file: %w", err)
	}
	return nil
}
