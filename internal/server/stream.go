package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProgressEvent represents a row-completion progress update for one job.
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	RowsDone  int       `json:"rowsDone"`
	TotalRows int       `json:"totalRows"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster fans out each job's row-progress updates to any number
// of SSE subscribers. Row progress is monotonic and collapses to a single
// current snapshot: a subscriber that falls behind only ever needs the
// newest RowsDone/State, not a backlog of every intermediate tick it
// missed. Each subscriber channel therefore holds at most one pending
// snapshot, and a new update replaces it instead of queuing behind it.
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[string]map[chan ProgressEvent]struct{} // jobID -> subscriber set
	latest  map[string]ProgressEvent                   // jobID -> most recent snapshot
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[string]map[chan ProgressEvent]struct{}),
		latest:  make(map[string]ProgressEvent),
	}
}

// Subscribe registers a new subscriber for a job's progress and returns its
// channel, pre-loaded with the job's current snapshot if one exists.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 1)
	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]struct{})
	}
	eb.clients[jobID][ch] = struct{}{}

	if last, ok := eb.latest[jobID]; ok {
		ch <- last
	}

	slog.Debug("SSE client subscribed", "job_id", jobID, "subscriber_count", len(eb.clients[jobID]))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if subs, ok := eb.clients[jobID]; ok {
		if _, present := subs[ch]; present {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(eb.clients, jobID)
		}
	}

	slog.Debug("SSE client unsubscribed", "job_id", jobID)
}

// Broadcast publishes a job's newest row-progress snapshot to every
// subscriber, overwriting any snapshot a subscriber hasn't read yet rather
// than blocking or dropping the update entirely.
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.latest[event.JobID] = event

	for ch := range eb.clients[event.JobID] {
		select {
		case ch <- event:
			continue
		default:
		}
		// Channel already holds an unread snapshot: drop it and replace
		// with the newer one, since only the latest state ever matters.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// CleanupJob removes all subscribers and cached state for a job, closing
// every subscriber channel so its SSE handler can return.
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.clients[jobID] {
		close(ch)
	}
	delete(eb.clients, jobID)
	delete(eb.latest, jobID)

	slog.Debug("cleaned up SSE resources", "job_id", jobID)
}

// handleJobStream serves an SSE stream of row-progress events for one
// frame job until the job's channel closes or the client disconnects.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	if initial, ok := s.jobManager.ProgressEvent(jobID); ok {
		if err := writeSSEEvent(w, initial); err != nil {
			slog.Error("failed to write initial SSE event", "error", err)
			return
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected", "job_id", jobID)
			return

		case event, open := <-events:
			if !open {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format.
func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
