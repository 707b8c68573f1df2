package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/your-org/falldetect/internal/storage"
)

// FileStore keeps one {camera}.json file per camera under dir.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(cameraID string) string {
	return filepath.Join(s.dir, cameraID+".json")
}

func (s *FileStore) Load(_ context.Context, cameraID string) (History, error) {
	data, err := os.ReadFile(s.path(cameraID))
	if errors.Is(err, os.ErrNotExist) {
		return History{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Save writes to a temporary file first and renames it over the record,
// so readers never see a partial file.
func (s *FileStore) Save(_ context.Context, cameraID string, h History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, cameraID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(cameraID))
}

// ObjectClient is the part of storage.MinIOStore the object store needs.
type ObjectClient interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}

// ObjectStore keeps one diagnostics/{camera}.json object per camera.
type ObjectStore struct {
	client ObjectClient
}

func NewObjectStore(client ObjectClient) *ObjectStore {
	return &ObjectStore{client: client}
}

func ObjectKey(cameraID string) string {
	return fmt.Sprintf("diagnostics/%s.json", cameraID)
}

func (s *ObjectStore) Load(ctx context.Context, cameraID string) (History, error) {
	data, err := s.client.GetObject(ctx, ObjectKey(cameraID))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return History{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (s *ObjectStore) Save(ctx context.Context, cameraID string, h History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return s.client.PutObject(ctx, ObjectKey(cameraID), data, "application/json")
}

func decode(data []byte) (History, error) {
	h := History{}
	if len(data) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return h, nil
}
