package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"zapretd/internal/domain"
)

const (
	lockTimeout = time.Second

	togglesKey   = "toggles"
	selectionKey = "selection"
	startupKey   = "startup"
	updatedAtKey = "__updated_at"
)

type selection struct {
	Selected []string `json:"selected"`
	Autorun  []string `json:"autorun"`
}

type startup struct {
	AutoStart      bool `json:"autoStart"`
	StartMinimized bool `json:"startMinimized"`
}

// Store persists domain.Settings in a bbolt file. The file lock is held for
// the lifetime of the store, so only one process can have it open.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	logger *zap.Logger
	closed bool
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, domain.E(domain.CodeInvalidArgument, "settings.open", "settings path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure settings dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, domain.E(domain.CodeUnavailable, "settings.open", "", domain.ErrAlreadyRunning)
		}
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: trimmed, logger: logger.Named("settings")}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Load returns the stored settings, falling back to defaults for anything
// never saved or unreadable.
func (s *Store) Load() (domain.Settings, error) {
	out := domain.DefaultSettings()
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := stateBucket(tx)
		if err != nil {
			return err
		}
		s.decode(bucket, togglesKey, &out.Toggles)

		var sel selection
		if s.decode(bucket, selectionKey, &sel) {
			out.SelectedProfiles = sel.Selected
			out.AutorunProfiles = sel.Autorun
		}

		st := startup{StartMinimized: out.StartMinimized}
		if s.decode(bucket, startupKey, &st) {
			out.AutoStart = st.AutoStart
			out.StartMinimized = st.StartMinimized
		}
		return nil
	})
	if err != nil {
		return domain.DefaultSettings(), err
	}
	return out, nil
}

// Save replaces the stored settings.
func (s *Store) Save(value domain.Settings) error {
	sections := map[string]any{
		togglesKey: value.Toggles,
		selectionKey: selection{
			Selected: nonNil(value.SelectedProfiles),
			Autorun:  nonNil(value.AutorunProfiles),
		},
		startupKey: startup{
			AutoStart:      value.AutoStart,
			StartMinimized: value.StartMinimized,
		},
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := stateBucket(tx)
		if err != nil {
			return err
		}
		for key, section := range sections {
			raw, err := json.Marshal(section)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			if err := bucket.Put([]byte(key), raw); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		stamp := time.Now().UTC().Format(time.RFC3339Nano)
		return bucket.Put([]byte(updatedAtKey), []byte(stamp))
	})
}

// UpdatedAt reports when settings were last saved; empty if never.
func (s *Store) UpdatedAt() (string, error) {
	var stamp string
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := stateBucket(tx)
		if err != nil {
			return err
		}
		stamp = string(bucket.Get([]byte(updatedAtKey)))
		return nil
	})
	return stamp, err
}

func (s *Store) decode(bucket *bolt.Bucket, key string, target any) bool {
	raw := bucket.Get([]byte(key))
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, target); err != nil {
		s.logger.Warn("settings section unreadable, using defaults", zap.String("section", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrSettingsClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrSettingsClosed
	}
	return s.db.Update(fn)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
