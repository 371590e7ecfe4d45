package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface as a content-addressed cache on
// disk: a frame's hash is also its lookup key, so no separate index is
// needed. Entries are sharded two hex characters deep
// (<baseDir>/frames/<hash[:2]>/<hash>/frame.json) — the same fan-out
// Git's object store and Docker's image layer store use so no single
// directory accumulates one entry per distinct view ever computed.
//
// Thread-safety: this implementation uses atomic file operations (rename)
// and does not require locks. Multiple goroutines can safely call methods
// concurrently.
type FSStore struct {
	baseDir string // Root directory for all cached frame data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// shardPrefix returns the two-character fan-out directory for a hash.
func shardPrefix(hash string) string {
	if len(hash) >= 2 {
		return hash[:2]
	}
	return "00"
}

func (fs *FSStore) framesRoot() string {
	return filepath.Join(fs.baseDir, "frames")
}

func (fs *FSStore) frameDir(hash string) string {
	return filepath.Join(fs.framesRoot(), shardPrefix(hash), hash)
}

func (fs *FSStore) framePath(hash string) string {
	return filepath.Join(fs.frameDir(hash), "frame.json")
}

// SaveFrame atomically saves a frame under hash. Uses temp file + rename
// to ensure atomicity.
func (fs *FSStore) SaveFrame(hash string, record *FrameRecord) error {
	if hash == "" {
		return fmt.Errorf("hash cannot be empty")
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	dir := fs.frameDir(hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create frame directory: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize frame: %w", err)
	}

	tempPath := fs.framePath(hash) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp frame file: %w", err)
	}

	finalPath := fs.framePath(hash)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename frame file: %w", err)
	}

	slog.Debug("frame cached", "hash", hash, "path", finalPath)
	return nil
}

// LoadFrame retrieves the frame cached under hash. The loaded record's own
// Hash field must match the lookup key: a mismatch means the shard
// directory holds the wrong content (a truncated hash collision, or a
// frame.json copied into the wrong slot by hand), and callers must not
// silently treat it as a cache hit for the requested key.
func (fs *FSStore) LoadFrame(hash string) (*FrameRecord, error) {
	if hash == "" {
		return nil, fmt.Errorf("hash cannot be empty")
	}

	path := fs.framePath(hash)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{Hash: hash}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat frame file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame file: %w", err)
	}

	var record FrameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize frame: %w", err)
	}

	if record.Hash != hash {
		return nil, fmt.Errorf("frame content hash mismatch: slot %s holds a record for %s", hash, record.Hash)
	}

	slog.Debug("frame loaded from cache", "hash", hash, "path", path)
	return &record, nil
}

// ListFrames returns metadata for all cached frames, walking each shard
// directory in turn.
func (fs *FSStore) ListFrames() ([]FrameMeta, error) {
	framesDir := fs.framesRoot()

	if _, err := os.Stat(framesDir); os.IsNotExist(err) {
		return []FrameMeta{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat frames directory: %w", err)
	}

	shards, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory: %w", err)
	}

	var infos []FrameMeta
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(framesDir, shard.Name()))
		if err != nil {
			slog.Warn("failed to read frame shard", "shard", shard.Name(), "error", err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			hash := entry.Name()
			record, err := fs.LoadFrame(hash)
			if err != nil {
				slog.Warn("failed to load frame for listing", "hash", hash, "error", err)
				continue
			}

			infos = append(infos, record.ToMeta())
		}
	}

	slog.Debug("listed cached frames", "count", len(infos))
	return infos, nil
}

// DeleteFrame removes the cached frame for the given hash.
func (fs *FSStore) DeleteFrame(hash string) error {
	if hash == "" {
		return fmt.Errorf("hash cannot be empty")
	}

	dir := fs.frameDir(hash)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{Hash: hash}
	} else if err != nil {
		return fmt.Errorf("failed to stat frame directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove frame directory: %w", err)
	}

	slog.Debug("frame evicted from cache", "hash", hash, "path", dir)
	return nil
}

// DiskUsage reports the total bytes a cached frame's directory occupies,
// so callers (e.g. a cache-listing CLI) never need to know the shard
// layout themselves.
func (fs *FSStore) DiskUsage(hash string) (int64, error) {
	var size int64
	err := filepath.Walk(fs.frameDir(hash), func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
