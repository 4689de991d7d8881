package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultKey is the fixed key the terminal chat persists its log under.
const DefaultKey = "prep-assistant-chat"

// HistoryStore persists a conversation log by key. Load returns nil for an unknown key.
type HistoryStore interface {
	Load(ctx context.Context, key string) ([]Message, error)
	Save(ctx context.Context, key string, messages []Message) error
	Clear(ctx context.Context, key string) error
}

// MemoryStore keeps logs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Message)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.logs[key]), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[key] = cloneMessages(messages)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, key)
	return nil
}

// FileStore writes one JSON file per key into Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("history directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) Load(_ context.Context, key string) ([]Message, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path(key), err)
	}
	return messages, nil
}

func (s *FileStore) Save(_ context.Context, key string, messages []Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	path := s.path(key)
	tmp, err := os.CreateTemp(s.Dir, ".history-*")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, fileName(key)+".json")
}

// fileName keeps keys from escaping the history directory. The hash suffix keeps
// keys that sanitize to the same name apart.
func fileName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	sum := sha256.Sum256([]byte(key))
	return name + "-" + hex.EncodeToString(sum[:4])
}
