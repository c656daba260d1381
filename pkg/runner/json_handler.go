package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/0x-stone/zspa/pkg/domain"
)

// JSONHandler drives a Runtime over JSON-Lines: each input line is a turn,
// each output line an event.
type JSONHandler struct {
	reader *bufio.Reader

	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONHandler creates a handler reading turns from r and writing events to w.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	return &JSONHandler{
		reader:  bufio.NewReader(r),
		encoder: json.NewEncoder(w),
	}
}

// Emit writes the event as a single JSON line.
func (h *JSONHandler) Emit(_ context.Context, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.encoder.Encode(ev)
}

// Next reads the next turn. A line holding a JSON object is decoded as a
// TurnRequest; any other line is the message text. sessionID fills a
// missing session id.
func (h *JSONHandler) Next(sessionID string) (TurnRequest, error) {
	for {
		text, err := h.reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return TurnRequest{}, err
			}
			continue
		}

		var req TurnRequest
		if !strings.HasPrefix(text, "{") || json.Unmarshal([]byte(text), &req) != nil {
			req = TurnRequest{Message: text}
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		return req, nil
	}
}

// Serve runs turns until the input is exhausted or ctx is done.
// Invalid turns are reported as error events and skipped.
func (h *JSONHandler) Serve(ctx context.Context, rt *Runtime, sessionID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := h.Next(sessionID)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = rt.Turn(ctx, req, h)
		switch {
		case errors.Is(err, ErrMissingSessionID), errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
			h.Emit(ctx, domain.Event{Type: domain.EventError, Message: err.Error()})
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
}
