package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/mandelzoom/internal/store"
	"github.com/spf13/cobra"
)

var (
	framesDataDir       string
	framesKeepLast      int
	framesOlderThanDays int
	framesForce         bool
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Manage the on-disk frame cache",
	Long: `Manage the frame cache including listing and cleaning old entries.
The cache lets the server serve a previously computed frame spec without
recomputing it.`,
}

var listFramesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cached frames",
	Long:  `Display all cached frames with metadata including hash, size, mode, timestamp, and disk usage.`,
	RunE:  runListFrames,
}

var cleanFramesCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old cached frames",
	Long: `Delete cached frames based on retention policy.
You can specify how many frames to keep or delete frames older than N days.`,
	RunE: runCleanFrames,
}

func init() {
	rootCmd.AddCommand(framesCmd)

	framesCmd.AddCommand(listFramesCmd)
	framesCmd.AddCommand(cleanFramesCmd)

	framesCmd.PersistentFlags().StringVar(&framesDataDir, "data-dir", "./data", "Base directory for frame cache storage")

	cleanFramesCmd.Flags().IntVar(&framesKeepLast, "keep-last", 0, "Keep only the last N frames (0 = keep all)")
	cleanFramesCmd.Flags().IntVar(&framesOlderThanDays, "older-than", 0, "Delete frames older than N days (0 = no age limit)")
	cleanFramesCmd.Flags().BoolVarP(&framesForce, "force", "f", false, "Skip confirmation prompt")
}

func runListFrames(cmd *cobra.Command, args []string) error {
	cacheStore, err := store.NewFSStore(framesDataDir)
	if err != nil {
		return fmt.Errorf("failed to open frame cache: %w", err)
	}

	infos, err := cacheStore.ListFrames()
	if err != nil {
		return fmt.Errorf("failed to list frames: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No cached frames found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tTIMESTAMP\tSIZE\tMODE\tDISK")
	fmt.Fprintln(w, "----\t---------\t----\t----\t----")

	for _, info := range infos {
		diskSize, err := cacheStore.DiskUsage(info.Hash)
		diskStr := "unknown"
		if err == nil {
			diskStr = formatBytes(diskSize)
		}

		timestamp := info.Timestamp.Format("2006-01-02 15:04:05")

		displayHash := info.Hash
		if len(displayHash) > 16 {
			displayHash = displayHash[:16] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
			displayHash,
			timestamp,
			info.Spec.Width, info.Spec.Height,
			info.Mode,
			diskStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal cached frames: %d\n", len(infos))
	return nil
}

func runCleanFrames(cmd *cobra.Command, args []string) error {
	if framesKeepLast == 0 && framesOlderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	cacheStore, err := store.NewFSStore(framesDataDir)
	if err != nil {
		return fmt.Errorf("failed to open frame cache: %w", err)
	}

	infos, err := cacheStore.ListFrames()
	if err != nil {
		return fmt.Errorf("failed to list frames: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No cached frames to clean.")
		return nil
	}

	toDelete := selectFramesForDeletion(infos, framesKeepLast, framesOlderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No cached frames match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d frame(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		displayHash := info.Hash
		if len(displayHash) > 16 {
			displayHash = displayHash[:16] + "..."
		}
		fmt.Printf("  - %s (%s)\n", displayHash, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !framesForce {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := cacheStore.DeleteFrame(info.Hash); err != nil {
			slog.Error("failed to delete cached frame", "hash", info.Hash, "error", err)
			failed++
		} else {
			slog.Info("deleted cached frame", "hash", info.Hash)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d frame(s), %d failed.\n", deleted, failed)
	return nil
}

// selectFramesForDeletion determines which cached frames should be deleted
// based on retention policy.
func selectFramesForDeletion(infos []store.FrameMeta, keepLast int, olderThanDays int) []store.FrameMeta {
	var toDelete []store.FrameMeta

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.FrameMeta, len(infos))
		copy(sorted, infos)

		for i := 0; i < len(sorted)-1; i++ {
			for j := 0; j < len(sorted)-i-1; j++ {
				if sorted[j].Timestamp.After(sorted[j+1].Timestamp) {
					sorted[j], sorted[j+1] = sorted[j+1], sorted[j]
				}
			}
		}

		numToDelete := len(sorted) - keepLast
		for i := 0; i < numToDelete; i++ {
			found := false
			for _, existing := range toDelete {
				if existing.Hash == sorted[i].Hash {
					found = true
					break
				}
			}
			if !found {
				toDelete = append(toDelete, sorted[i])
			}
		}
	}

	return toDelete
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// dirSize returns the total size in bytes of the regular files under path.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, walkErr error) error {
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
