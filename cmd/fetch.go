package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cwbudde/mandelzoom/internal/store"
	"github.com/spf13/cobra"
)

var (
	fetchServerURL string
	fetchLocalMode bool
	fetchDataDir   string
	fetchOutPath   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [job-id-or-hash]",
	Short: "Fetch a computed frame's debug image",
	Long: `Fetches the debug grayscale image for a frame.

Supports two modes:
  1. Server mode (default): poll the server until the job completes, then
     download its image.
  2. Local mode (--local): read a cached frame record directly out of the
     frame cache directory by its content hash, with no server involved.

Examples:
  # Fetch via server, polling until the job finishes
  mandelzoom fetch abc123 --server http://localhost:8080

  # Read directly from the on-disk frame cache
  mandelzoom fetch <hash> --local --data-dir ./data`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchServerURL, "server", "http://localhost:8080", "Server URL for remote fetch")
	fetchCmd.Flags().BoolVar(&fetchLocalMode, "local", false, "Read from the on-disk frame cache instead of a server")
	fetchCmd.Flags().StringVar(&fetchDataDir, "data-dir", "./data", "Base directory for the frame cache (local mode)")
	fetchCmd.Flags().StringVar(&fetchOutPath, "out", "fetched.png", "Output image path")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	id := args[0]

	if fetchLocalMode {
		return fetchLocal(id)
	}
	return fetchServer(id)
}

func fetchServer(jobID string) error {
	slog.Info("polling job", "job_id", jobID, "server", fetchServerURL)

	statusURL := fmt.Sprintf("%s/api/v1/frames/%s/status", fetchServerURL, jobID)

	for attempt := 0; attempt < 600; attempt++ {
		resp, err := http.Get(statusURL)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return fmt.Errorf("job not found: %s", jobID)
		}

		var status map[string]interface{}
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("failed to decode status: %w", decodeErr)
		}

		state, _ := status["state"].(string)
		switch state {
		case "completed":
			return downloadImage(jobID)
		case "failed":
			return fmt.Errorf("job failed: %v", status["error"])
		case "cancelled":
			return fmt.Errorf("job was cancelled")
		}

		time.Sleep(200 * time.Millisecond)
	}

	return fmt.Errorf("timed out waiting for job %s to complete", jobID)
}

func downloadImage(jobID string) error {
	imgURL := fmt.Sprintf("%s/api/v1/frames/%s/image.png", fetchServerURL, jobID)

	resp, err := http.Get(imgURL)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	out, err := os.Create(fetchOutPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write output image: %w", err)
	}

	fmt.Printf("✓ Saved %s\n", fetchOutPath)
	return nil
}

func fetchLocal(hash string) error {
	slog.Info("reading frame from cache", "hash", hash, "data_dir", fetchDataDir)

	cacheStore, err := store.NewFSStore(fetchDataDir)
	if err != nil {
		return fmt.Errorf("failed to open frame cache: %w", err)
	}

	record, err := cacheStore.LoadFrame(hash)
	if err != nil {
		return fmt.Errorf("failed to load cached frame: %w", err)
	}

	fmt.Printf("Loaded cached frame:\n")
	fmt.Printf("  Hash: %s\n", record.Hash)
	fmt.Printf("  Mode: %s\n", record.Mode)
	fmt.Printf("  Size: %dx%d\n", record.Spec.Width, record.Spec.Height)
	fmt.Printf("  Cached at: %s\n\n", record.Timestamp.Format(time.RFC3339))

	img := renderGrayscale(record.Values, record.Spec.Width, record.Spec.Height)

	out, err := os.Create(fetchOutPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("failed to encode output image: %w", err)
	}

	fmt.Printf("✓ Saved %s\n", fetchOutPath)
	return nil
}
