package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/foliodev/folio/internal/model"
)

// Storage keys used by Session.
const (
	TokenKey = "folio_token"
	UserKey  = "folio_user"
)

// Storage is the persistent key/value space a Session survives restarts in.
// Get returns "" with a nil error for absent keys.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session holds the admin's bearer token and identity. The token is never
// checked against the server when loaded; a rejected write is what reveals
// an expired token.
type Session struct {
	storage Storage

	mu      sync.RWMutex
	token   string
	user    *model.User
	loading atomic.Bool
}

// NewSession creates an unauthenticated Session over storage. Call Load to
// adopt whatever storage already holds.
func NewSession(storage Storage) *Session {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Session{storage: storage}
}

// Load adopts the persisted token and user when both are present and the
// user parses. Anything else clears both and leaves the session
// unauthenticated.
func (s *Session) Load() error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil

	token, terr := s.storage.Get(TokenKey)
	rawUser, uerr := s.storage.Get(UserKey)
	if terr == nil && uerr == nil && token != "" && rawUser != "" {
		var u model.User
		if err := json.Unmarshal([]byte(rawUser), &u); err == nil && u.Email != "" {
			s.token, s.user = token, &u
			return nil
		}
	}
	return s.clearStorage()
}

// Loading reports whether Load is currently running.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// Login stores the token and user in memory and in storage.
func (s *Session) Login(token string, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Set(TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.storage.Set(UserKey, string(raw)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	u := user
	s.token, s.user = token, &u
	return nil
}

// Logout clears the token and user from memory and storage.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", nil
	return s.clearStorage()
}

// Token returns the bearer token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in identity, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) clearStorage() error {
	return errors.Join(s.storage.Delete(TokenKey), s.storage.Delete(UserKey))
}

// ---------------------------------------------------------------------------
// Storage implementations
// ---------------------------------------------------------------------------

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileStorage keeps values in a single JSON object on disk, written with
// owner-only permissions.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage returns a FileStorage backed by path. The file and its
// directory are created on first write.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// DefaultSessionPath returns ~/.folio/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".folio", "session.json"), nil
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking login.
		values = map[string]string{}
	}
	values[key] = value
	return f.write(values)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		values = map[string]string{}
	}
	if _, ok := values[key]; !ok && err == nil {
		return nil
	}
	delete(values, key)
	return f.write(values)
}

func (f *FileStorage) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	return values, nil
}

func (f *FileStorage) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
