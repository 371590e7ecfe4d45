package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/mandelzoom/internal/store"
)

func testFrameSpecForCmd() store.FrameSpec {
	return store.FrameSpec{
		XMin: "-2.0", XMax: "1.0",
		YMin: "-1.5", YMax: "1.5",
		Width: 32, Height: 32, MaxIter: 100,
	}
}

func TestSelectFramesForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.FrameMeta{
		{Hash: "hash1", Timestamp: now.AddDate(0, 0, -10)},
		{Hash: "hash2", Timestamp: now.AddDate(0, 0, -5)},
		{Hash: "hash3", Timestamp: now.AddDate(0, 0, -1)},
		{Hash: "hash4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectFramesForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 frames to delete, got %d", len(toDelete))
	}

	found10 := false
	found30 := false
	for _, info := range toDelete {
		if info.Hash == "hash1" {
			found10 = true
		}
		if info.Hash == "hash4" {
			found30 = true
		}
	}

	if !found10 || !found30 {
		t.Error("Expected hash1 and hash4 to be selected for deletion")
	}
}

func TestSelectFramesForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.FrameMeta{
		{Hash: "hash1", Timestamp: now.AddDate(0, 0, -10)},
		{Hash: "hash2", Timestamp: now.AddDate(0, 0, -5)},
		{Hash: "hash3", Timestamp: now.AddDate(0, 0, -1)},
		{Hash: "hash4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectFramesForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 frames to delete, got %d", len(toDelete))
	}

	found30 := false
	found10 := false
	for _, info := range toDelete {
		if info.Hash == "hash4" {
			found30 = true
		}
		if info.Hash == "hash1" {
			found10 = true
		}
	}

	if !found30 || !found10 {
		t.Error("Expected hash4 and hash1 to be selected for deletion (oldest)")
	}
}

func TestSelectFramesForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.FrameMeta{
		{Hash: "hash1", Timestamp: now.AddDate(0, 0, -10)},
		{Hash: "hash2", Timestamp: now.AddDate(0, 0, -5)},
		{Hash: "hash3", Timestamp: now.AddDate(0, 0, -1)},
		{Hash: "hash4", Timestamp: now.AddDate(0, 0, -30)},
		{Hash: "hash5", Timestamp: now.AddDate(0, 0, -2)},
	}

	toDelete := selectFramesForDeletion(infos, 3, 7)

	if len(toDelete) < 2 {
		t.Errorf("Expected at least 2 frames to delete, got %d", len(toDelete))
	}
}

func TestDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := dirSize(tmpDir)
	if err != nil {
		t.Fatalf("dirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestFramesListCommand_NoFrames(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := framesDataDir
	framesDataDir = tmpDir
	defer func() { framesDataDir = originalDataDir }()

	if err := runListFrames(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestFramesListCommand_WithFrames(t *testing.T) {
	tmpDir := t.TempDir()

	cacheStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	record := store.NewFrameRecord("test-hash", testFrameSpecForCmd(), "double", make([]float64, 32*32))
	if err := cacheStore.SaveFrame("test-hash", record); err != nil {
		t.Fatalf("Failed to save frame: %v", err)
	}

	originalDataDir := framesDataDir
	framesDataDir = tmpDir
	defer func() { framesDataDir = originalDataDir }()

	if err := runListFrames(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestFramesCleanCommand_NoFlags(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := framesDataDir
	framesDataDir = tmpDir
	defer func() { framesDataDir = originalDataDir }()

	framesKeepLast = 0
	framesOlderThanDays = 0

	if err := runCleanFrames(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestFramesCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	cacheStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	record1 := store.NewFrameRecord("old-hash", testFrameSpecForCmd(), "double", make([]float64, 32*32))
	if err := cacheStore.SaveFrame("old-hash", record1); err != nil {
		t.Fatalf("Failed to save frame: %v", err)
	}
	record2 := store.NewFrameRecord("newer-hash", testFrameSpecForCmd(), "double", make([]float64, 32*32))
	if err := cacheStore.SaveFrame("newer-hash", record2); err != nil {
		t.Fatalf("Failed to save second frame: %v", err)
	}

	originalDataDir := framesDataDir
	framesDataDir = tmpDir
	defer func() { framesDataDir = originalDataDir }()

	// Keep only the most recent frame; clean should delete exactly one.
	framesKeepLast = 1
	framesOlderThanDays = 0
	framesForce = true
	defer func() {
		framesKeepLast = 0
		framesOlderThanDays = 0
		framesForce = false
	}()

	if err := runCleanFrames(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	infos, err := cacheStore.ListFrames()
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("Expected 1 frame to remain after clean, got %d", len(infos))
	}
}
