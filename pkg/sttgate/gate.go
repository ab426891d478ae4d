// Package sttgate turns raw PCM audio into interim/final transcript
// segments: a manual RMS voice-activity state machine gates a
// backend-agnostic transcription backend (streaming or batch), with
// serialized, cooldown-limited reconnects on transport failure.
package sttgate

import (
	"context"
	"sync"
	"time"

	"github.com/lokutor-ai/boardroom-runtime/pkg/logging"
)

const (
	reconnectCooldown = 3 * time.Second
	maxReconnects      = 50
)

// SegmentType distinguishes interim from final transcription segments.
type SegmentType string

const (
	SegmentInterim SegmentType = "interim"
	SegmentFinal   SegmentType = "final"
)

// Segment is one unit of transcribed speech.
type Segment struct {
	Type       SegmentType
	Text       string
	IsFinal    bool
	Confidence float64
	StartTime  time.Time
	EndTime    time.Time
}

// StreamingBackend is a long-lived transcription session: activity
// markers bracket speech, audio is streamed in between, and transcript
// tokens arrive asynchronously via Receive.
type StreamingBackend interface {
	Connect(ctx context.Context) error
	Close() error
	StartActivity(ctx context.Context) error
	EndActivity(ctx context.Context) error
	Send(ctx context.Context, pcm []byte) error
	// Receive blocks until the next segment or transport-closed signal.
	// ok is false when the underlying session has closed and the gate
	// should treat this as a disconnect needing lazy reconnect.
	Receive(ctx context.Context) (seg Segment, ok bool, err error)
}

// BatchBackend transcribes one complete utterance at a time: the gate
// accumulates PCM while SPEAKING and transcribes on transition to SILENT.
type BatchBackend interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// OnSegment is called for every segment that passes the post-filters
// (the Coordinator's on_final_transcript callback, for final segments).
type OnSegment func(Segment)

// Gate consumes raw PCM frames and emits filtered transcript segments,
// reconnecting its backend as needed per SPEC_FULL.md §4.3.
type Gate struct {
	log     logging.Logger
	onFinal OnSegment
	onEvent OnSegment // also invoked for interim segments

	streaming StreamingBackend
	batch     BatchBackend

	v vad

	reconnectMu    sync.Mutex
	reconnectCount int
	needsReconnect bool
	lastErrorAt    time.Time
	running        bool

	batchBuf []byte
}

// NewStreaming builds a Gate over a StreamingBackend.
func NewStreaming(backend StreamingBackend, onFinal, onEvent OnSegment, log logging.Logger) *Gate {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Gate{log: log, onFinal: onFinal, onEvent: onEvent, streaming: backend, running: true}
}

// NewBatch builds a Gate over a BatchBackend.
func NewBatch(backend BatchBackend, onFinal, onEvent OnSegment, log logging.Logger) *Gate {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	return &Gate{log: log, onFinal: onFinal, onEvent: onEvent, batch: backend, running: true}
}

// Start connects a streaming backend's session and begins its receive
// loop. No-op for a batch-backed gate.
func (g *Gate) Start(ctx context.Context) error {
	if g.streaming == nil {
		return nil
	}
	if err := g.streaming.Connect(ctx); err != nil {
		return err
	}
	go g.receiveLoop(ctx)
	return nil
}

// Stop marks the gate as no longer running and closes the backend.
func (g *Gate) Stop() {
	g.reconnectMu.Lock()
	g.running = false
	g.reconnectMu.Unlock()
	if g.streaming != nil {
		g.streaming.Close()
	}
}

// PushFrame feeds one PCM frame through the VAD and, on a forwarded
// frame, to the backend. Errors from the backend mark the gate as
// needing a reconnect and reset the VAD to SILENT, per the gate's
// failure-handling policy.
func (g *Gate) PushFrame(ctx context.Context, frame []byte) {
	forward, transition := g.v.process(frame)
	if !forward {
		return
	}

	if g.batch != nil {
		g.pushBatchFrame(ctx, frame, transition)
		return
	}
	g.pushStreamingFrame(ctx, frame, transition)
}

func (g *Gate) pushBatchFrame(ctx context.Context, frame []byte, transition vadTransition) {
	switch transition {
	case vadActivityStart:
		g.batchBuf = append([]byte(nil), frame...)
	case vadActivityEnd:
		g.batchBuf = append(g.batchBuf, frame...)
		pcm := g.batchBuf
		g.batchBuf = nil
		go g.transcribeBatch(ctx, pcm)
		return
	default:
		g.batchBuf = append(g.batchBuf, frame...)
	}
}

func (g *Gate) transcribeBatch(ctx context.Context, pcm []byte) {
	text, err := g.batch.Transcribe(ctx, pcm)
	if err != nil {
		g.log.Warn("batch transcription failed: %v", err)
		return
	}
	filtered := FilterTranscript(text)
	if filtered == "" {
		return
	}
	seg := Segment{Type: SegmentFinal, Text: filtered, IsFinal: true, Confidence: 0.9, EndTime: time.Now()}
	g.emitFinal(seg)
}

func (g *Gate) pushStreamingFrame(ctx context.Context, frame []byte, transition vadTransition) {
	if !g.ensureConnected(ctx) {
		return
	}

	switch transition {
	case vadActivityStart:
		if err := g.streaming.StartActivity(ctx); err != nil {
			g.onSendError(err)
			return
		}
	case vadActivityEnd:
		if err := g.streaming.Send(ctx, frame); err != nil {
			g.onSendError(err)
			return
		}
		if err := g.streaming.EndActivity(ctx); err != nil {
			g.onSendError(err)
		}
		return
	}

	if err := g.streaming.Send(ctx, frame); err != nil {
		g.onSendError(err)
	}
}

// ensureConnected reconnects the streaming backend if needed, serialized
// by reconnectMu so only one reconnect attempt runs at a time, cooled
// down for 3s after an error and capped at 50 attempts.
func (g *Gate) ensureConnected(ctx context.Context) bool {
	g.reconnectMu.Lock()
	defer g.reconnectMu.Unlock()

	if !g.needsReconnect {
		return true
	}
	if !g.running {
		return false
	}
	if time.Since(g.lastErrorAt) < reconnectCooldown {
		return false
	}

	g.reconnectCount++
	if g.reconnectCount > maxReconnects {
		g.log.Error("stt gate: max reconnects exceeded, stopping permanently")
		g.running = false
		return false
	}

	if err := g.streaming.Connect(ctx); err != nil {
		g.log.Error("stt gate: reconnect failed: %v", err)
		g.lastErrorAt = time.Now()
		return false
	}
	g.needsReconnect = false
	go g.receiveLoop(ctx)
	return true
}

func (g *Gate) onSendError(err error) {
	g.log.Warn("stt gate: send error: %v", err)
	g.v.reset()
	g.reconnectMu.Lock()
	g.needsReconnect = true
	g.lastErrorAt = time.Now()
	g.reconnectMu.Unlock()
}

func (g *Gate) receiveLoop(ctx context.Context) {
	for {
		seg, ok, err := g.streaming.Receive(ctx)
		if err != nil {
			g.log.Warn("stt gate: receive loop error: %v", err)
		}
		if !ok {
			g.reconnectMu.Lock()
			running := g.running
			g.needsReconnect = running
			g.reconnectMu.Unlock()
			return
		}
		g.dispatch(seg)
	}
}

func (g *Gate) dispatch(seg Segment) {
	if seg.Type == SegmentInterim {
		if g.onEvent != nil {
			g.onEvent(seg)
		}
		return
	}
	filtered := FilterTranscript(seg.Text)
	if filtered == "" {
		return
	}
	seg.Text = filtered
	g.emitFinal(seg)
}

func (g *Gate) emitFinal(seg Segment) {
	if g.onFinal != nil {
		g.onFinal(seg)
	}
	if g.onEvent != nil {
		g.onEvent(seg)
	}
}
