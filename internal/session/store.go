package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sagecli/sage/internal/errors"
	"github.com/sagecli/sage/internal/logging"
)

// Store is the durable mapping from session name to Record.
type Store interface {
	// Load retrieves the record for the given name.
	// Returns errors.ErrSessionNotFound if no readable record exists;
	// corrupt data is reported as not-found, never as a fatal error.
	Load(ctx context.Context, name string) (*Record, error)

	// Save serializes the full record, overwriting any prior content at
	// that name. Safe to call without a prior Load.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the record. Returns true if a record existed and was
	// removed, false if nothing matched.
	Delete(ctx context.Context, name string) (bool, error)

	// ListAll enumerates every persisted record ordered by last-used
	// descending, skipping entries that fail to parse.
	ListAll(ctx context.Context) ([]*Record, error)
}

// FileStore implements Store with one JSON file per session under a base
// directory. Writes are atomic (temp file + rename) so a record file is
// never observed in a partially-written state. Concurrent processes share
// the directory without locking; last writer wins at record granularity.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	log     *logging.Logger
}

// NewFileStore creates a FileStore rooted at the given directory.
// The directory is created if it doesn't exist; a concurrent process
// creating it at the same time is not an error.
func NewFileStore(baseDir string, log *logging.Logger) (*FileStore, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// Load retrieves and deserializes the record for the given name.
func (fs *FileStore) Load(ctx context.Context, name string) (*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	path, err := fs.recordPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.NewStorageError("load", name, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		// Callers treat a corrupt record as "does not exist yet".
		fs.log.Warn("skipping corrupt session record", "name", name, "error", err.Error())
		return nil, errors.ErrSessionNotFound
	}
	return rec, nil
}

// Save persists the record, overwriting any prior content at that name.
func (fs *FileStore) Save(ctx context.Context, rec *Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := rec.Validate(); err != nil {
		return errors.NewStorageError("save", rec.Name, err)
	}

	path, err := fs.recordPath(rec.Name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.NewStorageError("save", rec.Name, err)
	}

	// The directory may have been removed between invocations; recreate
	// lazily and tolerate concurrent creation.
	if err := os.MkdirAll(fs.baseDir, 0755); err != nil {
		return errors.NewStorageError("save", rec.Name, err)
	}

	if err := atomicWriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError("save", rec.Name, err)
	}
	return nil
}

// Delete removes the record for the given name.
func (fs *FileStore) Delete(ctx context.Context, name string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path, err := fs.recordPath(name)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewStorageError("delete", name, err)
	}
	return true, nil
}

// ListAll enumerates every persisted record, most recently used first.
// Entries that fail to parse are skipped so one corrupt record cannot
// break listing of the rest.
func (fs *FileStore) ListAll(ctx context.Context) ([]*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorageError("list", "", err)
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			fs.log.Warn("skipping unreadable session record", "file", entry.Name(), "error", err.Error())
			continue
		}

		rec, err := decodeRecord(data)
		if err != nil {
			fs.log.Warn("skipping corrupt session record", "file", entry.Name(), "error", err.Error())
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastUsed.After(records[j].LastUsed)
	})
	return records, nil
}

// BaseDir returns the directory backing this store.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

const recordExt = ".json"

// recordPath maps a session name to its file path, rejecting names that
// would escape the store directory.
func (fs *FileStore) recordPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", errors.NewStorageError("resolve", name, fmt.Errorf("invalid session name"))
	}
	return filepath.Join(fs.baseDir, name+recordExt), nil
}

// decodeRecord parses and validates a serialized record. Timestamps are
// reconstructed as time.Time values by the JSON decoder.
func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSessionCorrupted, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSessionCorrupted, err)
	}
	return &rec, nil
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file first, then renaming. This ensures the target file is
// never in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
