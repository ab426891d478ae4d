package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/lokutor-ai/boardroom-runtime/pkg/sttgate"
)

// DeepgramStreamingSTT adapts Deepgram's real-time streaming WebSocket API
// to sttgate.StreamingBackend: one long-lived connection carries binary
// PCM frames in and JSON Results messages out, instead of one request per
// utterance like DeepgramSTT's prerecorded endpoint.
type DeepgramStreamingSTT struct {
	apiKey     string
	model      string
	language   string
	sampleRate int

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewDeepgramStreamingSTT(apiKey string) *DeepgramStreamingSTT {
	return &DeepgramStreamingSTT{
		apiKey:     apiKey,
		model:      "nova-2",
		language:   "en",
		sampleRate: 16000,
	}
}

func (s *DeepgramStreamingSTT) SetSampleRate(rate int) { s.sampleRate = rate }
func (s *DeepgramStreamingSTT) SetLanguage(lang string) { s.language = lang }

func (s *DeepgramStreamingSTT) Name() string { return "deepgram-streaming-stt" }

func (s *DeepgramStreamingSTT) dialURL() string {
	u, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	q := u.Query()
	q.Set("model", s.model)
	q.Set("language", s.language)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(s.sampleRate))
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect dials a fresh Deepgram streaming session, satisfying both the
// initial connect and every later reconnect the gate drives.
func (s *DeepgramStreamingSTT) Connect(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.apiKey)

	conn, _, err := websocket.Dial(ctx, s.dialURL(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return fmt.Errorf("deepgram streaming: dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *DeepgramStreamingSTT) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "session closed")
}

// StartActivity is a no-op: Deepgram's streaming endpoint has no explicit
// speech-start marker, it only reacts to the audio stream itself.
func (s *DeepgramStreamingSTT) StartActivity(ctx context.Context) error { return nil }

// EndActivity asks Deepgram to finalize any buffered audio into a Results
// message instead of waiting for its own endpointer to fire.
func (s *DeepgramStreamingSTT) EndActivity(ctx context.Context) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
}

func (s *DeepgramStreamingSTT) Send(ctx context.Context, pcm []byte) error {
	conn, err := s.activeConn()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, pcm)
}

func (s *DeepgramStreamingSTT) activeConn() (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, fmt.Errorf("deepgram streaming: not connected")
	}
	return s.conn, nil
}

type deepgramStreamingResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Receive blocks for the next Results message, skipping metadata frames,
// and reports ok=false once the connection is gone or closes, which the
// gate treats as a disconnect needing a lazy reconnect.
func (s *DeepgramStreamingSTT) Receive(ctx context.Context) (sttgate.Segment, bool, error) {
	conn, err := s.activeConn()
	if err != nil {
		return sttgate.Segment{}, false, nil
	}

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return sttgate.Segment{}, false, err
		}

		var result deepgramStreamingResult
		if err := json.Unmarshal(msg, &result); err != nil {
			continue
		}
		if result.Type != "Results" || len(result.Channel.Alternatives) == 0 {
			continue
		}
		alt := result.Channel.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		segType := sttgate.SegmentInterim
		if result.IsFinal {
			segType = sttgate.SegmentFinal
		}
		return sttgate.Segment{
			Type:       segType,
			Text:       alt.Transcript,
			IsFinal:    result.IsFinal,
			Confidence: alt.Confidence,
			EndTime:    time.Now(),
		}, true, nil
	}
}
