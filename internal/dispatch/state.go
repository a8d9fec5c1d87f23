package dispatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
)

// StateStore — JSON-объект asset_timeframe -> последняя отправка.
// Файл перезаписывается целиком через tmp + rename.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

func (s *StateStore) Path() string { return s.path }

func (s *StateStore) Load() (models.DispatchState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.DispatchState{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return models.DispatchState{}, nil
	}

	state := models.DispatchState{}
	if err := sonic.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return state, nil
}

func (s *StateStore) Save(state models.DispatchState) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	b, err := sonic.ConfigStd.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dispatch state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Reset удаляет состояние. Только для ручного вызова.
func (s *StateStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
