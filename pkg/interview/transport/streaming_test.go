package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/realtime"
)

func newAgentServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func agent(url, key string) *realtime.Client {
	return realtime.NewClient(key, realtime.WithURL(url))
}

func closeNormal(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	// Wait for the client to go away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func drain(t *testing.T, events <-chan realtime.Event) []realtime.Event {
	t.Helper()
	var got []realtime.Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func connect(t *testing.T, d Dialer, cfg StreamingConfig) (*Streaming, <-chan realtime.Event, error) {
	t.Helper()
	s := NewStreaming(d, cfg, nil)
	t.Cleanup(func() { s.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	events, err := s.Connect(ctx, interview.StagePhoneScreen, "s1")
	return s, events, err
}

func expectNoFallback(t *testing.T, s *Streaming) {
	t.Helper()
	select {
	case err := <-s.FallbackRequired():
		t.Fatalf("unexpected fallback: %v", err)
	default:
	}
}

func expectFallback(t *testing.T, s *Streaming) error {
	t.Helper()
	select {
	case err := <-s.FallbackRequired():
		select {
		case again := <-s.FallbackRequired():
			t.Fatalf("fallback signalled twice: %v", again)
		default:
		}
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("fallback not signalled")
		return nil
	}
}

func TestStreamingConfiguresAndForwards(t *testing.T) {
	configured := make(chan map[string]any, 1)
	url := newAgentServer(t, func(conn *websocket.Conn) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		configured <- msg
		conn.WriteJSON(map[string]any{"type": "session.updated", "session": map[string]any{"id": "sess_1"}})
		conn.WriteJSON(map[string]any{"type": "response.audio_transcript.done", "transcript": "Welcome."})
		closeNormal(conn)
	})

	cfg := DefaultStreamingConfig()
	cfg.Instructions = map[interview.Stage]string{interview.StagePhoneScreen: "You are a recruiter."}
	s, events, err := connect(t, agent(url, "test-key"), cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	got := drain(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if ack, ok := got[0].(*realtime.ConfigAcknowledged); !ok || ack.SessionID != "sess_1" {
		t.Errorf("event 0 = %#v", got[0])
	}
	if done, ok := got[1].(*realtime.TranscriptDone); !ok || done.Transcript != "Welcome." {
		t.Errorf("event 1 = %#v", got[1])
	}
	expectNoFallback(t, s)

	msg := <-configured
	if msg["type"] != realtime.EventTypeSessionUpdate {
		t.Fatalf("first message type = %v", msg["type"])
	}
	sess, _ := msg["session"].(map[string]any)
	if sess["instructions"] != "You are a recruiter." || sess["input_audio_format"] != "pcm16" {
		t.Errorf("session config = %v", sess)
	}
	if td, _ := sess["turn_detection"].(map[string]any); td["type"] != realtime.VADServerVAD {
		t.Errorf("turn_detection = %v", sess["turn_detection"])
	}
}

func TestStreamingHandshakeAuthFailure(t *testing.T) {
	url := newAgentServer(t, func(*websocket.Conn) {})
	for _, key := range []string{"wrong-key", ""} {
		s, events, err := connect(t, agent(url, key), DefaultStreamingConfig())
		if err == nil {
			t.Fatalf("Connect succeeded with key %q", key)
		}
		if events != nil {
			t.Error("events channel returned on failure")
		}
		if !errors.Is(err, interview.ErrTransport) || !realtime.IsAuthError(err) {
			t.Errorf("key %q: err = %v, want transport auth error", key, err)
		}
		if ferr := expectFallback(t, s); !realtime.IsAuthError(ferr) {
			t.Errorf("key %q: fallback reason = %v", key, ferr)
		}
	}
}

func TestStreamingAuthErrorEvent(t *testing.T) {
	url := newAgentServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteJSON(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "code": "invalid_api_key", "message": "Incorrect API key provided"},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	s, events, err := connect(t, agent(url, "test-key"), DefaultStreamingConfig())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := drain(t, events); len(got) != 0 {
		t.Errorf("auth error event forwarded: %#v", got)
	}
	if ferr := expectFallback(t, s); !realtime.IsAuthError(ferr) {
		t.Errorf("fallback reason = %v", ferr)
	}
}

func TestStreamingUnexpectedDrop(t *testing.T) {
	url := newAgentServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.UnderlyingConn().Close()
	})
	s, events, err := connect(t, agent(url, "test-key"), DefaultStreamingConfig())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	drain(t, events)
	if ferr := expectFallback(t, s); !errors.Is(ferr, interview.ErrTransport) {
		t.Errorf("fallback reason = %v", ferr)
	}
}

func TestStreamingProtocolErrorsAreNonFatal(t *testing.T) {
	url := newAgentServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(map[string]any{"type": "response.bogus"})
		conn.WriteJSON(map[string]any{"type": "error", "error": map[string]any{"message": "rate limited"}})
		conn.WriteJSON(map[string]any{"type": "response.audio_transcript.delta", "delta": "Hi"})
		closeNormal(conn)
	})
	s, events, err := connect(t, agent(url, "test-key"), DefaultStreamingConfig())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	got := drain(t, events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %#v", len(got), got)
	}
	if _, ok := got[0].(*realtime.ErrorEvent); !ok {
		t.Errorf("event 0 = %#v, want non-auth error event", got[0])
	}
	if d, ok := got[1].(*realtime.TranscriptDelta); !ok || d.Delta != "Hi" {
		t.Errorf("event 1 = %#v", got[1])
	}
	expectNoFallback(t, s)
}

func TestStreamingSendText(t *testing.T) {
	types := make(chan string, 4)
	url := newAgentServer(t, func(conn *websocket.Conn) {
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			types <- msg["type"].(string)
		}
	})
	s, _, err := connect(t, agent(url, "test-key"), DefaultStreamingConfig())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.SendText("I prefer to type this."); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := s.SendAudio([]byte{0, 1}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	want := []string{
		realtime.EventTypeSessionUpdate,
		realtime.EventTypeConversationItemCreate,
		realtime.EventTypeResponseCreate,
		realtime.EventTypeInputAudioBufferAppend,
	}
	for i, w := range want {
		select {
		case got := <-types:
			if got != w {
				t.Errorf("message %d = %s, want %s", i, got, w)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("message %d not received", i)
		}
	}

	if err := s.Close(); err != nil {
		t.Logf("Close: %v", err)
	}
	if err := s.SendAudio([]byte{0}); !errors.Is(err, realtime.ErrClosed) {
		t.Errorf("SendAudio after Close = %v, want ErrClosed", err)
	}
	expectNoFallback(t, s)
}

func TestStreamingSendBeforeConnect(t *testing.T) {
	s := NewStreaming(nil, DefaultStreamingConfig(), nil)
	if err := s.SendAudio([]byte{0}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAudio = %v, want ErrNotConnected", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
