package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tasktrack/internal/models"
)

// BackupName — имя файла резервной копии сессии.
const BackupName = "tasktrack-session.json"

// StoredSession — то, что переживает перезапуск клиента.
type StoredSession struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	SavedAt      time.Time       `json:"saved_at"`
	User         *models.Profile `json:"user,omitempty"`
}

// TokenStore хранит резервную копию сессии. Если копии нет, Load возвращает (nil, nil).
type TokenStore interface {
	Load() (*StoredSession, error)
	Save(s *StoredSession) error
	Clear() error
}

type FileTokenStore struct {
	Path string
}

func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{Path: filepath.Join(dir, BackupName)}
}

func (f *FileTokenStore) Load() (*StoredSession, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session backup: %w", err)
	}
	var s StoredSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session backup: %w", err)
	}
	return &s, nil
}

func (f *FileTokenStore) Save(s *StoredSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("session backup dir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session backup: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func (f *FileTokenStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
