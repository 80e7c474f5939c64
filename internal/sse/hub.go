// Package sse is the job-scoped event stream for /stream: one channel per
// job id, adapted from the teacher's user-scoped SSEHub.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/platform/logger"
)

type Event string

const (
	EventStatus       Event = "StatusChanged"
	EventFollowupNeed Event = "FollowupNeeded"
)

type Message struct {
	JobID string `json:"job_id"`
	Event Event  `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	JobID    string
	Outbound chan Message
	done     chan struct{}
}

// Hub fans out batch-completion snapshots to every client subscribed to a
// given job id. There is exactly one channel per job, not per user: a job
// has a single client_id but may be watched by more than one tab.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	bridge        *RedisBridge
}

// SetBridge wires an optional RedisBridge so Publish also reaches other
// processes; nil (the default) keeps fan-out local to this Hub.
func (h *Hub) SetBridge(b *RedisBridge) { h.bridge = b }

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "sse.Hub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient(jobID string) *Client {
	return &Client{
		ID:       uuid.New(),
		JobID:    jobID,
		Outbound: make(chan Message, 10),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.subscriptions[client.JobID]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[client.JobID] = clients
	}
	clients[client] = true
	h.log.Debug("sse client subscribed", "client_id", client.ID.String(), "job_id", client.JobID)
}

func (h *Hub) unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.subscriptions[client.JobID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscriptions, client.JobID)
		}
	}
}

// Publish implements controller.Streamer: every batch the controller runs
// without failing ends with a call here, regardless of whether anyone is
// listening.
func (h *Hub) Publish(jobID string, snapshot controller.StatusSnapshot) {
	msg := Message{JobID: jobID, Event: EventStatus, Data: snapshot}
	h.localBroadcast(msg)
	if h.bridge != nil {
		if err := h.bridge.PublishRemote(context.Background(), msg); err != nil {
			h.log.Warn("redis sse publish failed", "job_id", jobID, "error", err.Error())
		}
	}
}

// localBroadcast fans msg out to this process's subscribers only; the
// RedisBridge forwarder calls this directly to avoid re-publishing what it
// just received back onto the shared channel.
func (h *Hub) localBroadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.subscriptions[msg.JobID]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("dropping sse message, outbound buffer full", "client_id", c.ID.String(), "job_id", msg.JobID)
		}
	}
}

// ServeHTTP streams client's channel as text/event-stream until the
// request context ends or the client is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			raw, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("failed to marshal sse message", "error", err.Error())
				continue
			}
			fmt.Fprintf(w, "event: %s\n", strings.ToLower(string(msg.Event)))
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(client *Client) {
	close(client.done)
	h.unsubscribe(client)
}
