package proxy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/failcore/runtime/runtime/proxy"
)

func drain(t *testing.T, out <-chan []byte, errc <-chan error) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	var err error
	for out != nil || errc != nil {
		select {
		case c, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			chunks = append(chunks, c)
		case e, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			err = e
		case <-time.After(time.Second):
			t.Fatal("timed out draining stream")
		}
	}
	return chunks, err
}

// Grounded on test_process_stream_immediate_forward: chunks forward
// unchanged and in order.
func TestStreamHandlerForwardsChunksInOrder(t *testing.T) {
	h := proxy.NewStreamHandler(false, nil, 10)
	in := make(chan []byte, 3)
	in <- []byte("chunk1")
	in <- []byte("chunk2")
	in <- []byte("chunk3")
	close(in)

	out, errc := h.ProcessStream(context.Background(), in, "run", "step")
	chunks, err := drain(t, out, errc)

	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("chunk1"), []byte("chunk2"), []byte("chunk3")}, chunks)
}

// Grounded on test_process_stream_dlp_detection_warn_mode: a warn-mode
// handler still forwards every chunk and reports the hit on the side
// channel.
func TestStreamHandlerWarnModeReportsEvidenceWithoutBlocking(t *testing.T) {
	h := proxy.NewStreamHandler(false, nil, 10)
	in := make(chan []byte, 1)
	in <- []byte("key: sk-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	close(in)

	out, errc := h.ProcessStream(context.Background(), in, "run", "step")
	chunks, err := drain(t, out, errc)

	require.NoError(t, err)
	require.Len(t, chunks, 1)

	select {
	case ev := <-h.Evidence:
		require.Equal(t, "warning", ev.Severity)
		require.NotEmpty(t, ev.Hits)
	case <-time.After(time.Second):
		t.Fatal("expected evidence to be reported")
	}
}

// Grounded on test_process_stream_dlp_detection_strict_mode: strict
// mode raises a StreamViolation instead of forwarding the offending
// chunk.
func TestStreamHandlerStrictModeBlocksOnViolation(t *testing.T) {
	h := proxy.NewStreamHandler(true, nil, 10)
	in := make(chan []byte, 1)
	in <- []byte("key: sk-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	close(in)

	out, errc := h.ProcessStream(context.Background(), in, "run", "step")
	chunks, err := drain(t, out, errc)

	require.Error(t, err)
	var violation *proxy.StreamViolation
	require.ErrorAs(t, err, &violation)
	require.Empty(t, chunks)
}

// Grounded on test_process_stream_no_violation.
func TestStreamHandlerNoViolationNoEvidence(t *testing.T) {
	h := proxy.NewStreamHandler(false, nil, 10)
	in := make(chan []byte, 1)
	in <- []byte("hello world")
	close(in)

	out, errc := h.ProcessStream(context.Background(), in, "run", "step")
	_, err := drain(t, out, errc)
	require.NoError(t, err)

	select {
	case ev := <-h.Evidence:
		t.Fatalf("unexpected evidence: %+v", ev)
	default:
	}
}

// Grounded on test_process_stream_queue_full_graceful_degradation:
// evidence is dropped, not the stream, once the evidence channel is
// full.
func TestStreamHandlerGracefulDegradationOnFullEvidenceQueue(t *testing.T) {
	h := proxy.NewStreamHandler(false, nil, 1)
	h.Evidence <- proxy.StreamEvidence{Type: "filler"}

	in := make(chan []byte, 2)
	in <- []byte("key: sk-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	in <- []byte("more data")
	close(in)

	out, errc := h.ProcessStream(context.Background(), in, "run", "step")
	chunks, err := drain(t, out, errc)

	require.NoError(t, err)
	require.Len(t, chunks, 2)
}
