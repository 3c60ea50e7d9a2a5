package requests

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderRequestID carries the client-chosen idempotency key
const HeaderRequestID = "X-Request-ID"

// ProcessedRequest is the stored outcome of a mutating request
type ProcessedRequest struct {
	RequestID string
	ClientID  string
	Route     string
	Status    int
	Body      []byte
	Timestamp time.Time
}

// RequestTracker remembers mutating requests by request ID so a retried call
// replays the first response instead of evaluating or resetting twice
type RequestTracker struct {
	mu                sync.RWMutex
	processedRequests map[string]ProcessedRequest // requestID -> outcome
	retention         time.Duration
	now               func() time.Time
	log               *zap.Logger
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRequestTracker creates a new request tracker with automatic cleanup
func NewRequestTracker(retention time.Duration, log *zap.Logger) *RequestTracker {
	if retention <= 0 {
		retention = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	rt := &RequestTracker{
		processedRequests: make(map[string]ProcessedRequest),
		retention:         retention,
		now:               time.Now,
		log:               log.With(zap.String("component", "request_tracker")),
		stopCleanup:       make(chan struct{}),
	}
	go rt.cleanupLoop()
	return rt
}

// Lookup returns the stored outcome for requestID. An empty request ID is
// never tracked.
func (rt *RequestTracker) Lookup(requestID string) (ProcessedRequest, bool) {
	if requestID == "" {
		return ProcessedRequest{}, false
	}

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	processed, exists := rt.processedRequests[requestID]
	return processed, exists
}

// MarkProcessed stores the outcome of a request
func (rt *RequestTracker) MarkProcessed(requestID, clientID, route string, status int, body []byte) {
	if requestID == "" {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.processedRequests[requestID] = ProcessedRequest{
		RequestID: requestID,
		ClientID:  clientID,
		Route:     route,
		Status:    status,
		Body:      append([]byte(nil), body...),
		Timestamp: rt.now(),
	}
}

// GetProcessedCount returns the number of tracked requests
func (rt *RequestTracker) GetProcessedCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.processedRequests)
}

// Cleanup removes entries older than the retention period
func (rt *RequestTracker) Cleanup() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	cutoff := rt.now().Add(-rt.retention)
	removed := 0
	for id, processed := range rt.processedRequests {
		if processed.Timestamp.Before(cutoff) {
			delete(rt.processedRequests, id)
			removed++
		}
	}
	return removed
}

func (rt *RequestTracker) cleanupLoop() {
	ticker := time.NewTicker(rt.retention)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rt.Cleanup(); removed > 0 {
				rt.log.Debug("expired processed requests", zap.Int("removed", removed))
			}
		case <-rt.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rt *RequestTracker) Stop() {
	rt.stopOnce.Do(func() { close(rt.stopCleanup) })
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware replays the stored response for a repeated X-Request-ID. A key
// reused by another client or on another route is rejected with 409.
func (rt *RequestTracker) Middleware(clientIDKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			c.Next()
			return
		}

		clientID := c.GetString(clientIDKey)
		route := c.Request.Method + " " + c.Request.URL.Path

		if processed, ok := rt.Lookup(requestID); ok {
			if processed.ClientID != clientID || processed.Route != route {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Request ID already used"})
				return
			}
			rt.log.Debug("replaying processed request", zap.String("request_id", requestID))
			c.Header("Idempotent-Replay", "true")
			c.Data(processed.Status, "application/json; charset=utf-8", processed.Body)
			c.Abort()
			return
		}

		writer := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		// only successful outcomes are worth replaying
		if status := writer.Status(); status < http.StatusBadRequest {
			rt.MarkProcessed(requestID, clientID, route, status, writer.body.Bytes())
		}
	}
}
