// Package tts adapts concrete speech-synthesis vendors to pkg/llm.TTS.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Voice is one of Lokutor's synthesis voices. Selection policy (which
// persona gets which voice) is out of scope; LokutorTTS assigns voices by
// a fixed round-robin over this small set.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
)

var voiceCycle = []Voice{VoiceF1, VoiceM1, VoiceF2, VoiceM2}

// LokutorTTS adapts the Lokutor streaming synthesis websocket to
// pkg/llm.TTS. Synthesize is content-hash cached to disk under cacheDir so
// repeat calls for the same (agent, text) never re-synthesize; it returns
// a URL built from publicBaseURL, leaving actually serving that path to
// whatever HTTP layer hosts the session (out of scope here).
type LokutorTTS struct {
	apiKey        string
	host          string
	scheme        string
	cacheDir      string
	publicBaseURL string

	mu   sync.Mutex
	conn *websocket.Conn

	voiceMu   sync.Mutex
	voiceIdx  map[string]int
}

func NewLokutorTTS(apiKey, cacheDir, publicBaseURL string) *LokutorTTS {
	return &LokutorTTS{
		apiKey:        apiKey,
		host:          "api.lokutor.com",
		scheme:        "wss",
		cacheDir:      cacheDir,
		publicBaseURL: publicBaseURL,
		voiceIdx:      make(map[string]int),
	}
}

func (t *LokutorTTS) Name() string { return "lokutor" }

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

// voiceFor assigns a persistent, round-robin voice per agentID.
func (t *LokutorTTS) voiceFor(agentID string) Voice {
	t.voiceMu.Lock()
	defer t.voiceMu.Unlock()
	idx, ok := t.voiceIdx[agentID]
	if !ok {
		idx = len(t.voiceIdx) % len(voiceCycle)
		t.voiceIdx[agentID] = idx
	}
	return voiceCycle[idx]
}

// Synthesize satisfies pkg/llm.TTS.
func (t *LokutorTTS) Synthesize(ctx context.Context, agentID, text, sessionID string) (string, error) {
	hash := contentHash(agentID, text)
	if t.cacheDir != "" {
		cached := filepath.Join(t.cacheDir, hash+".raw")
		if _, err := os.Stat(cached); err == nil {
			return t.urlFor(hash), nil
		}
	}

	var audio []byte
	err := t.StreamSynthesize(ctx, text, t.voiceFor(agentID), func(chunk []byte) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		return "", err
	}

	if t.cacheDir != "" {
		if err := os.MkdirAll(t.cacheDir, 0o755); err != nil {
			return "", fmt.Errorf("creating tts cache dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(t.cacheDir, hash+".raw"), audio, 0o644); err != nil {
			return "", fmt.Errorf("writing cached synthesis: %w", err)
		}
	}

	return t.urlFor(hash), nil
}

func (t *LokutorTTS) urlFor(hash string) string {
	return t.publicBaseURL + "/" + hash + ".raw"
}

func contentHash(agentID, text string) string {
	sum := sha256.Sum256([]byte(agentID + "|" + text))
	return hex.EncodeToString(sum[:])[:32]
}

// StreamSynthesize drives one synthesis request over the websocket,
// delivering raw audio chunks to onChunk as they arrive.
func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, voice Voice, onChunk func([]byte) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req := map[string]interface{}{
		"text":    text,
		"voice":   string(voice),
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
