// Package agent turns raw completion output into chat responses.
//
// The Runner sits between the HTTP boundary and the completion
// backend. It owns lazy one-time initialization, shields callers from
// backend errors, and normalizes output into Response values.
package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/cambio-ai/cambio/internal/log"
	"github.com/cambio-ai/cambio/internal/provider"
)

// Name identifies this agent in responses and the agent card.
const Name = "cambio"

// genericErrorMessage is what callers see on any backend failure. The
// underlying error is logged, never surfaced, so backend details do
// not leak to clients.
const genericErrorMessage = "An error occurred while processing your request. Please try again."

// Response types.
const (
	TypeText  = "text"
	TypeError = "error"
)

// Response is one unit of agent output. A terminal response has
// IsTaskComplete set; a streaming sequence contains exactly one.
type Response struct {
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	IsPartial      bool           `json:"is_partial"`
	IsTaskComplete bool           `json:"is_task_complete"`
	RequiresInput  bool           `json:"requires_input"`
	AgentName      string         `json:"agent_name"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Completer is the completion surface the runner needs. Satisfied by
// *provider.Handle; narrowed for tests.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string, callback provider.StreamCallback) (string, error)
}

// ResolveFunc produces a Completer. Usually a closure over
// provider.Provider.Resolve.
type ResolveFunc func(ctx context.Context) (Completer, error)

// Runner executes chat turns against a lazily resolved backend.
//
// State is one-way Uninitialized -> Ready: the first call to Invoke
// or Stream resolves the backend; a failed resolution leaves the
// runner uninitialized and the next call retries. Concurrent first
// calls serialize on the mutex, so at most one resolution proceeds
// and all callers observe the same outcome.
type Runner struct {
	resolve ResolveFunc
	logger  log.Logger

	mu        sync.Mutex
	completer Completer
}

// NewRunner creates an uninitialized runner.
func NewRunner(resolve ResolveFunc, logger log.Logger) *Runner {
	return &Runner{resolve: resolve, logger: logger}
}

// Ready reports whether the backend has been resolved.
func (r *Runner) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completer != nil
}

func (r *Runner) ensureReady(ctx context.Context) (Completer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completer != nil {
		return r.completer, nil
	}

	c, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	r.completer = c
	r.logger.Info("agent runner ready", "agent", Name)
	return c, nil
}

// Invoke runs a single-shot chat turn and returns a terminal
// response. Failures come back as terminal error responses, never as
// an error return.
func (r *Runner) Invoke(ctx context.Context, text, sessionID string) Response {
	c, err := r.ensureReady(ctx)
	if err != nil {
		r.logger.Error("initialization failed", "session_id", sessionID, "error", err)
		return errorResponse()
	}

	content, err := c.Complete(ctx, text)
	if err != nil {
		r.logger.Error("completion failed", "session_id", sessionID, "error", err)
		return errorResponse()
	}

	return terminalResponse(content)
}

// Stream runs a streaming chat turn, delivering responses through
// emit. The backend exposes token fragments rather than structured
// partial messages, so fragments are accumulated and exactly one
// terminal response is emitted. An emit error (typically a client
// disconnect) aborts the upstream call and is returned to the caller.
func (r *Runner) Stream(ctx context.Context, text, sessionID string, emit func(Response) error) error {
	c, err := r.ensureReady(ctx)
	if err != nil {
		r.logger.Error("initialization failed", "session_id", sessionID, "error", err)
		return emit(errorResponse())
	}

	var accumulated strings.Builder
	full, err := c.Stream(ctx, text, func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		accumulated.WriteString(chunk.Text())
		return ctx.Err()
	})
	if err != nil {
		if ctx.Err() != nil {
			// Caller canceled; nothing left to deliver.
			return ctx.Err()
		}
		r.logger.Error("streaming completion failed", "session_id", sessionID, "error", err)
		return emit(errorResponse())
	}

	if full == "" {
		full = accumulated.String()
	}
	return emit(terminalResponse(full))
}

func terminalResponse(content string) Response {
	return Response{
		Content:        content,
		Type:           TypeText,
		IsTaskComplete: true,
		AgentName:      Name,
	}
}

func errorResponse() Response {
	return Response{
		Content:        genericErrorMessage,
		Type:           TypeError,
		IsTaskComplete: true,
		AgentName:      Name,
	}
}
