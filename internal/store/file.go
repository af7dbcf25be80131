package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// State is the Singer state document:
//
//	{"bookmarks":{"invoices":{"replication_key":"last_update_time","replication_key_value":"..."}}}
type State struct {
	Bookmarks map[string]StreamState `json:"bookmarks"`
}

// StreamState is the bookmark of one stream inside a State.
type StreamState struct {
	ReplicationKey      string `json:"replication_key,omitempty"`
	ReplicationKeyValue string `json:"replication_key_value,omitempty"`
}

// NewState returns a State holding a single stream bookmark.
func NewState(stream, replicationKey, value string) State {
	return State{Bookmarks: map[string]StreamState{
		stream: {ReplicationKey: replicationKey, ReplicationKeyValue: value},
	}}
}

// FileStateStore implements StateStore on a Singer state JSON file. Other
// streams present in the file are preserved on save.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore returns a state store backed by path. The file need not
// exist yet.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

// GetBookmark implements StateStore.
func (s *FileStateStore) GetBookmark(_ context.Context, stream string) (*domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return nil, err
	}

	ss, ok := state.Bookmarks[stream]
	if !ok || ss.ReplicationKeyValue == "" {
		return nil, nil
	}

	b := &domain.Bookmark{
		Stream:         stream,
		ReplicationKey: ss.ReplicationKey,
		Value:          ss.ReplicationKeyValue,
	}
	if fi, err := os.Stat(s.path); err == nil {
		b.UpdatedAt = fi.ModTime().UTC()
	}
	return b, nil
}

// SaveBookmark implements StateStore. The file is replaced atomically.
func (s *FileStateStore) SaveBookmark(_ context.Context, stream, replicationKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]StreamState, 1)
	}
	state.Bookmarks[stream] = StreamState{
		ReplicationKey:      replicationKey,
		ReplicationKeyValue: value,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return writeFileAtomic(s.path, append(data, '\n'))
}

func (s *FileStateStore) read() (State, error) {
	var state State

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("reading state file: %w", err)
	}
	if len(data) == 0 {
		return state, nil
	}

	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	return state, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // sync error takes precedence
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
