// Package envstore persists deployment identifiers in a dotenv file.
package envstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
)

const DefaultPath = ".env"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrNotANumber  = errors.New("value is not a non-negative integer")
	ErrInvalidKey  = errors.New("invalid key")
)

// Store is a key/value view over a dotenv file. Every call re-reads the file
// so edits made by other tools between steps are preserved.
type Store struct {
	lggr logger.Logger
	path string
	mu   sync.Mutex
}

func New(lggr logger.Logger, path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{lggr: logger.Named(lggr, "EnvStore"), path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Set writes key=value, keeping all other entries. The file is created if it
// does not exist.
func (s *Store) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	s.lggr.Infow("Updating env file", "path", s.path, "key", key, "value", value)
	values[key] = value
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// GetNumber parses the value for key as a base-10 uint64.
func (s *Store) GetNumber(key string) (uint64, error) {
	v, ok, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s in %s", ErrKeyNotFound, key, s.path)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrNotANumber, key, v)
	}
	return n, nil
}

// Values returns a copy of every entry in the file.
func (s *Store) Values() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return values, nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, r := range key {
		if !(r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Exists reports whether the backing file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
