package sttgate

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func int16Frame(val int16, n int) []byte {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		b.WriteByte(byte(val))
		b.WriteByte(byte(val >> 8))
	}
	return b.Bytes()
}

func TestVADSpeechStartOnLoudFrame(t *testing.T) {
	var v vad
	quiet := int16Frame(100, 160)
	loud := int16Frame(2000, 160)

	forward, tr := v.process(quiet)
	if forward || tr != vadNone {
		t.Fatalf("expected quiet frame while SILENT to be dropped, got forward=%v tr=%v", forward, tr)
	}

	forward, tr = v.process(loud)
	if !forward || tr != vadActivityStart {
		t.Fatalf("expected loud frame to start activity, got forward=%v tr=%v", forward, tr)
	}
}

func TestVADSpeechEndAfterSilenceChunks(t *testing.T) {
	var v vad
	loud := int16Frame(2000, 160)
	quiet := int16Frame(50, 160)

	v.process(loud) // -> SPEAKING
	var tr vadTransition
	for i := 0; i < SilenceChunksForEnd; i++ {
		_, tr = v.process(quiet)
	}
	if tr != vadActivityEnd {
		t.Fatalf("expected activity end after %d silence chunks, got %v", SilenceChunksForEnd, tr)
	}
}

func TestFilterNoiseAndBlacklist(t *testing.T) {
	cases := []string{"<noise>", "(silence)", "ok", "um", "", "ab"}
	for _, c := range cases {
		if FilterTranscript(c) != "" {
			t.Errorf("expected %q to be filtered out", c)
		}
	}
	if FilterTranscript("what is your growth rate") == "" {
		t.Error("expected a real sentence to pass the filter")
	}
}

func TestFilterIdempotent(t *testing.T) {
	inputs := []string{"ok", "what is your growth rate", "<noise>", "这是中文"}
	for _, in := range inputs {
		once := FilterTranscript(in)
		twice := FilterTranscript(once)
		if once != twice {
			t.Errorf("filter not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestFilterStripsInlineNoiseToken(t *testing.T) {
	got := FilterTranscript("revenue <noise> grew")
	if got != "revenue grew" {
		t.Fatalf("expected inline noise token to be stripped, got %q", got)
	}
}

func TestFilterRejectsNonLatinScript(t *testing.T) {
	if FilterTranscript("这是一个测试的句子") != "" {
		t.Error("expected CJK text to be filtered out")
	}
}

// fakeBatchBackend transcribes a fixed string and records the PCM it saw.
type fakeBatchBackend struct {
	mu   sync.Mutex
	text string
	err  error
	seen [][]byte
}

func (f *fakeBatchBackend) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, pcm)
	f.mu.Unlock()
	return f.text, f.err
}

func TestBatchGateEmitsOnActivityEnd(t *testing.T) {
	backend := &fakeBatchBackend{text: "what is your growth rate"}
	done := make(chan Segment, 1)
	g := NewBatch(backend, func(s Segment) { done <- s }, nil, nil)

	loud := int16Frame(2000, 160)
	quiet := int16Frame(50, 160)

	ctx := context.Background()
	g.PushFrame(ctx, loud)
	for i := 0; i < SilenceChunksForEnd; i++ {
		g.PushFrame(ctx, quiet)
	}

	select {
	case seg := <-done:
		if seg.Text != "what is your growth rate" {
			t.Fatalf("unexpected segment text: %q", seg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a final segment to be emitted within 1s")
	}
}

func TestBatchGateSuppressesNoiseResult(t *testing.T) {
	backend := &fakeBatchBackend{text: "ok"}
	done := make(chan Segment, 1)
	g := NewBatch(backend, func(s Segment) { done <- s }, nil, nil)

	loud := int16Frame(2000, 160)
	quiet := int16Frame(50, 160)
	ctx := context.Background()
	g.PushFrame(ctx, loud)
	for i := 0; i < SilenceChunksForEnd; i++ {
		g.PushFrame(ctx, quiet)
	}

	select {
	case seg := <-done:
		t.Fatalf("expected noise transcript to be suppressed, got %q", seg.Text)
	case <-time.After(200 * time.Millisecond):
		// no emission within the window: suppressed as expected
	}
}

var errBoom = errors.New("boom")

// fakeStreamingBackend is an in-memory StreamingBackend: Receive blocks on
// a channel the test drives directly, so it can simulate the backend
// closing the transport after a final segment.
type fakeStreamingBackend struct {
	mu           sync.Mutex
	connectCount int
	recvCh       chan Segment
}

func newFakeStreamingBackend() *fakeStreamingBackend {
	return &fakeStreamingBackend{recvCh: make(chan Segment)}
}

func (f *fakeStreamingBackend) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connectCount++
	f.mu.Unlock()
	return nil
}

func (f *fakeStreamingBackend) Close() error                            { return nil }
func (f *fakeStreamingBackend) StartActivity(ctx context.Context) error { return nil }
func (f *fakeStreamingBackend) EndActivity(ctx context.Context) error   { return nil }
func (f *fakeStreamingBackend) Send(ctx context.Context, pcm []byte) error { return nil }

func (f *fakeStreamingBackend) Receive(ctx context.Context) (Segment, bool, error) {
	f.mu.Lock()
	ch := f.recvCh
	f.mu.Unlock()
	seg, ok := <-ch
	if !ok {
		return Segment{}, false, nil
	}
	return seg, true, nil
}

func (f *fakeStreamingBackend) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCount
}

// reopen gives the backend a fresh receive channel, as a real transport
// would hand the gate a fresh session on reconnect.
func (f *fakeStreamingBackend) reopen() {
	f.mu.Lock()
	f.recvCh = make(chan Segment)
	f.mu.Unlock()
}

// TestStreamingGateReconnectsOnceOnTransportClose covers the mandatory
// reconnect scenario: the backend closes its transport right after a final
// segment, and the next loud frame triggers exactly one reconnect attempt,
// incrementing the gate's counter.
func TestStreamingGateReconnectsOnceOnTransportClose(t *testing.T) {
	backend := newFakeStreamingBackend()
	g := NewStreaming(backend, func(Segment) {}, nil, nil)

	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("unexpected error starting gate: %v", err)
	}
	if got := backend.connects(); got != 1 {
		t.Fatalf("expected one initial connect, got %d", got)
	}

	// Backend delivers a final segment, then closes the transport.
	backend.mu.Lock()
	ch := backend.recvCh
	backend.mu.Unlock()
	ch <- Segment{Type: SegmentFinal, Text: "revenue grew", IsFinal: true}
	close(ch)

	// Let the receive loop observe the close and mark needsReconnect.
	time.Sleep(50 * time.Millisecond)

	// A transport close is not a send error, so no cooldown applies: the
	// first ≥500 RMS frame afterwards reconnects at once.
	backend.reopen()
	loud := int16Frame(2000, 160)
	g.PushFrame(ctx, loud)
	time.Sleep(50 * time.Millisecond)
	if got := backend.connects(); got != 2 {
		t.Fatalf("expected the first loud frame after the close to reconnect, got %d connects", got)
	}

	// Further speech on the restored session must not reconnect again.
	g.PushFrame(ctx, loud)
	time.Sleep(50 * time.Millisecond)

	if got := backend.connects(); got != 2 {
		t.Fatalf("expected exactly one reconnect attempt, got %d total connects", got)
	}

	g.reconnectMu.Lock()
	count := g.reconnectCount
	g.reconnectMu.Unlock()
	if count != 1 {
		t.Fatalf("expected reconnect counter to be 1, got %d", count)
	}
}
