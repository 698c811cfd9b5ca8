package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"liquidityEngine/internal/storage/postgres"
)

// StateStore persists the last processed event timestamp.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps progress in a JSON file. One file can hold the
// progress of several window sizes, keyed by Name.
type FileStateStore struct {
	Path string
	Name string
}

type stateFile struct {
	LastProcessed map[string]uint64 `json:"last_processed_ts"`
	UpdatedAt     string            `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	state, err := s.read()
	if err != nil {
		return 0, false, err
	}
	ts, ok := state.LastProcessed[s.key()]
	return ts, ok, nil
}

func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	state, err := s.read()
	if err != nil {
		return err
	}
	state.LastProcessed[s.key()] = ts
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) key() string {
	if s.Name == "" {
		return "default"
	}
	return s.Name
}

func (s *FileStateStore) read() (stateFile, error) {
	state := stateFile{LastProcessed: make(map[string]uint64)}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse state: %w", err)
	}
	if state.LastProcessed == nil {
		state.LastProcessed = make(map[string]uint64)
	}
	return state, nil
}

// DBStateStore keeps progress in the indexer_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, ts)
}

// StateName is the progress key for one window size.
func StateName(windowSeconds uint64) string {
	return "aggregator:" + strconv.FormatUint(windowSeconds, 10)
}
