package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/cambio-ai/cambio/internal/agent"
)

const (
	// MaxMessageRunes caps the length of an inbound chat message.
	MaxMessageRunes = 4000

	// maxRequestBody caps the request body size in bytes, generous
	// headroom over the message cap for JSON overhead.
	maxRequestBody = 64 * 1024
)

// errStreamDone halts emission after the terminal chunk has been
// written. Not an error condition.
var errStreamDone = errors.New("stream complete")

// Runner is the agent surface the chat handlers need. Satisfied by
// *agent.Runner; narrowed for tests.
type Runner interface {
	Invoke(ctx context.Context, text, sessionID string) agent.Response
	Stream(ctx context.Context, text, sessionID string, emit func(agent.Response) error) error
	Ready() bool
}

// chatRequest is the body of both chat endpoints.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse is the non-streaming reply envelope.
type chatResponse struct {
	Response      string `json:"response"`
	SessionID     string `json:"session_id"`
	IsComplete    bool   `json:"is_complete"`
	RequiresInput bool   `json:"requires_input"`
}

// streamChunk is one SSE data line on the streaming path.
type streamChunk struct {
	Content       string `json:"content"`
	SessionID     string `json:"session_id"`
	IsComplete    bool   `json:"is_complete"`
	RequiresInput bool   `json:"requires_input"`
}

type chatHandler struct {
	runner   Runner
	sessions Sessions
	logger   *slog.Logger
}

// parseRequest decodes and validates the chat request body. The
// returned message is trimmed of surrounding whitespace.
func (ch *chatHandler) parseRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return chatRequest{}, errors.New("message is required")
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageRunes {
		return chatRequest{}, fmt.Errorf("message exceeds %d characters", MaxMessageRunes)
	}
	return req, nil
}

// message handles POST /api/chat/message: a single-shot chat turn.
func (ch *chatHandler) message(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	req, err := ch.parseRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), ch.logger)
		return
	}

	sessionID := ch.sessions.Touch(req.SessionID)

	resp := ch.runner.Invoke(r.Context(), req.Message, sessionID)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:      resp.Content,
		SessionID:     sessionID,
		IsComplete:    resp.IsTaskComplete,
		RequiresInput: resp.RequiresInput,
	})
}

// stream handles POST /api/chat/stream: SSE-framed chat.
//
// Framing: Content-Type text/plain, one "data: <json>\n\n" line per
// agent response, flushed after each write. The loop stops after the
// first terminal response. A validation failure before the stream
// opens produces a 400 with a single data error line.
func (ch *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", ch.logger)
		return
	}

	req, err := ch.parseRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeDataLine(w, map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}

	sessionID := ch.sessions.Touch(req.SessionID)

	done := false
	streamErr := ch.runner.Stream(r.Context(), req.Message, sessionID, func(resp agent.Response) error {
		if done {
			return errStreamDone
		}
		if err := writeDataLine(w, streamChunk{
			Content:       resp.Content,
			SessionID:     sessionID,
			IsComplete:    resp.IsTaskComplete,
			RequiresInput: resp.RequiresInput,
		}); err != nil {
			return err
		}
		flusher.Flush()
		done = resp.IsTaskComplete
		return nil
	})
	if streamErr != nil && !errors.Is(streamErr, errStreamDone) {
		// Usually a client disconnect; the stream is already broken,
		// so there is nothing useful to send.
		ch.logger.Debug("stream ended with error", "session_id", sessionID, "error", streamErr)
	}
}

// writeDataLine serializes v as one SSE data line.
func writeDataLine(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write stream chunk: %w", err)
	}
	return nil
}
