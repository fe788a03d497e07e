package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blkluv/NFTVs/internal/crypto"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/metrics"
)

// FileStore keeps the snapshot as a single JSON document on disk.
// Writes go through a temp file + rename so a concurrent read never observes
// a partially written snapshot.
type FileStore struct {
	path   string
	cipher crypto.Cipher
	mu     sync.Mutex
}

var _ domain.SnapshotStore = (*FileStore)(nil)

func NewFileStore(path string, cipher crypto.Cipher) *FileStore {
	return &FileStore{path: path, cipher: cipher}
}

func (s *FileStore) Read(_ context.Context) (domain.SessionSnapshot, bool, error) {
	start := time.Now()
	defer observe("read", start)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.StoreOpsTotal.WithLabelValues("read", "success").Inc()
			return domain.SessionSnapshot{}, false, nil
		}
		metrics.StoreOpsTotal.WithLabelValues("read", "error").Inc()
		return domain.SessionSnapshot{}, false, fmt.Errorf("failed to read session file: %w", err)
	}

	snapshot, ok := s.decode(data)
	metrics.StoreOpsTotal.WithLabelValues("read", "success").Inc()
	return snapshot, ok, nil
}

func (s *FileStore) Write(_ context.Context, snapshot domain.SessionSnapshot) error {
	start := time.Now()
	defer observe("write", start)

	token, err := s.cipher.Encrypt(snapshot.Authorization.Token)
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("write", "error").Inc()
		return fmt.Errorf("failed to encrypt token: %w", err)
	}
	snapshot.Authorization.Token = token

	data, err := json.Marshal(snapshot)
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("write", "error").Inc()
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(data); err != nil {
		metrics.StoreOpsTotal.WithLabelValues("write", "error").Inc()
		return err
	}
	metrics.StoreOpsTotal.WithLabelValues("write", "success").Inc()
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.Write(ctx, domain.SessionSnapshot{})
}

// decode turns stored bytes into a snapshot. Malformed JSON, an undecryptable
// token, and a partial snapshot all read as absent.
func (s *FileStore) decode(data []byte) (domain.SessionSnapshot, bool) {
	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Warn("Malformed session file, treating as absent", "path", s.path, "error", err)
		return domain.SessionSnapshot{}, false
	}

	if snapshot.Authorization.Token != "" {
		token, err := s.cipher.Decrypt(snapshot.Authorization.Token)
		if err != nil {
			slog.Warn("Undecryptable session token, treating as absent", "path", s.path, "error", err)
			return domain.SessionSnapshot{}, false
		}
		snapshot.Authorization.Token = token
	}

	if !snapshot.Valid() {
		return domain.SessionSnapshot{}, false
	}
	return snapshot, true
}

func (s *FileStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
