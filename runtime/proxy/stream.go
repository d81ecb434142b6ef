package proxy

import (
	"context"
	"fmt"

	"github.com/failcore/runtime/runtime/taint"
)

// StreamViolation is returned on the error channel when StreamHandler is
// in strict mode and a chunk matches a DLP pattern.
type StreamViolation struct {
	Hits []string
}

func (e *StreamViolation) Error() string {
	return fmt.Sprintf("DLP violation: %v", e.Hits)
}

// StreamEvidence is one side-channel finding from scanning a streamed
// chunk: which patterns hit, at what severity, for which run/step.
type StreamEvidence struct {
	Type     string
	Hits     []string
	Severity string
	RunID    string
	StepID   string
}

// StreamHandler tees an upstream SSE/streaming response: every chunk is
// forwarded to the caller immediately, and a copy is scanned for DLP
// hits on the side. In warn mode (the default) scanning never blocks
// forwarding; in strict mode each chunk is scanned before being
// forwarded, so a violation stops the stream before leaking it.
//
// Grounded on tests/proxy/test_proxy_streaming.py's StreamHandler.
type StreamHandler struct {
	StrictMode bool
	Scanner    *taint.DLPScanner
	Evidence   chan StreamEvidence
}

// NewStreamHandler builds a StreamHandler. evidenceBuf sizes the
// evidence channel; once full, evidence is dropped rather than applying
// backpressure to scanning (test_process_stream_queue_full_graceful_degradation).
func NewStreamHandler(strict bool, scanner *taint.DLPScanner, evidenceBuf int) *StreamHandler {
	if scanner == nil {
		scanner = taint.NewDLPScanner()
	}
	if evidenceBuf <= 0 {
		evidenceBuf = 100
	}
	return &StreamHandler{
		StrictMode: strict,
		Scanner:    scanner,
		Evidence:   make(chan StreamEvidence, evidenceBuf),
	}
}

// ProcessStream tees in onto the returned channel. The returned error
// channel carries at most one StreamViolation (strict mode only) and is
// closed, along with the data channel, once in is drained or ctx is
// done.
func (h *StreamHandler) ProcessStream(ctx context.Context, in <-chan []byte, runID, stepID string) (<-chan []byte, <-chan error) {
	out := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		for chunk := range in {
			if h.StrictMode {
				hits := h.scanChunk(chunk)
				if len(hits) > 0 {
					h.emit(StreamEvidence{Type: "stream_dlp_hit", Hits: hits, Severity: "error", RunID: runID, StepID: stepID})
					errc <- &StreamViolation{Hits: hits}
					return
				}
				if !h.send(ctx, out, chunk) {
					return
				}
				continue
			}

			if !h.send(ctx, out, chunk) {
				return
			}
			go func(c []byte) {
				hits := h.scanChunk(c)
				if len(hits) > 0 {
					h.emit(StreamEvidence{Type: "stream_dlp_hit", Hits: hits, Severity: "warning", RunID: runID, StepID: stepID})
				}
			}(chunk)
		}
	}()

	return out, errc
}

func (h *StreamHandler) send(ctx context.Context, out chan<- []byte, chunk []byte) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// scanChunk never panics out: a malformed pattern in the scanner is
// recovered and treated as no hits, matching
// test_process_stream_scanning_error_doesnt_break_stream.
func (h *StreamHandler) scanChunk(chunk []byte) (hits []string) {
	defer func() {
		if recover() != nil {
			hits = nil
		}
	}()
	return h.Scanner.Scan(string(chunk))
}

func (h *StreamHandler) emit(ev StreamEvidence) {
	select {
	case h.Evidence <- ev:
	default:
	}
}
