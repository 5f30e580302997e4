package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
	assessmentService "github.com/bizbothq/bizbot/backend/internal/service/assessment"
	"github.com/bizbothq/bizbot/backend/pkg/utils"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 8 * time.Second

// Handler streams conversation appends via Server-Sent Events
type Handler struct {
	svc *assessmentService.Service
}

// New creates a new stream handler
func New(svc *assessmentService.Service) *Handler {
	return &Handler{svc: svc}
}

// StreamEvent represents one SSE payload
type StreamEvent struct {
	Event     string              `json:"event"`
	SessionID string              `json:"sessionId,omitempty"`
	Message   *assessment.Message `json:"message,omitempty"`
	Phase     assessment.Phase    `json:"phase,omitempty"`
	Progress  float64             `json:"progress,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// HandleEvents replays the transcript and then forwards live appends until
// the client disconnects.
func (h *Handler) HandleEvents(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	// Subscribe before reading the backlog so nothing is missed; channel
	// entries already present in the backlog are deduplicated by message ID.
	ch, cancel, err := h.svc.Watch(sessionID)
	if err != nil {
		return err
	}
	defer cancel()

	sess, err := h.svc.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)

	log.Printf("[sse] opening conversation stream for session=%s", sessionID)
	defer log.Printf("[sse] closing conversation stream for session=%s", sessionID)

	utils.SendSSEEvent(w, flusher, "snapshot", StreamEvent{
		Event:     "snapshot",
		SessionID: sessionID,
		Phase:     sess.Phase,
		Progress:  sess.Progress(),
	})

	replayed := make(map[string]struct{}, len(sess.Conversation))
	for i := range sess.Conversation {
		msg := sess.Conversation[i]
		replayed[msg.ID] = struct{}{}
		utils.SendSSEChunk(w, flusher, StreamEvent{Event: "message", SessionID: sessionID, Message: &msg})
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if _, seen := replayed[msg.ID]; seen {
				continue
			}
			utils.SendSSEChunk(w, flusher, StreamEvent{Event: "message", SessionID: sessionID, Message: &msg})
		case <-ticker.C:
			utils.SendSSEChunk(w, flusher, StreamEvent{Event: "heartbeat", SessionID: sessionID})
		}
	}
}
