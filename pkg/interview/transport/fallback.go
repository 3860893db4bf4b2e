package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/haivivi/interviewer/pkg/interview"
)

// Fallback endpoint paths, relative to the base URL.
const (
	PathStart = "/start"
	PathTurn  = "/turn"
)

// BeginResult is the agent's opening turn.
type BeginResult struct {
	Message string `json:"message"`
	// Audio is the opening message as 24kHz PCM16.
	Audio []byte `json:"audio_base64,omitempty"`
	// ConversationPhase is set for phone_screen sessions.
	ConversationPhase string `json:"conversation_phase,omitempty"`
}

// TurnContext is what the agent needs to answer a candidate turn.
type TurnContext struct {
	Stage          interview.Stage
	SessionID      string
	Transcript     []interview.Utterance
	Phase          string
	AskedQuestions []string
}

// TurnResult is the agent's reply to one candidate turn.
type TurnResult struct {
	UserUtterance     string `json:"user_utterance"`
	AgentUtterance    string `json:"agent_utterance"`
	Audio             []byte `json:"audio_base64,omitempty"`
	ConversationPhase string `json:"conversation_phase,omitempty"`
	NextStage         string `json:"next_stage,omitempty"`
	Complete          bool   `json:"complete"`
}

type startRequest struct {
	Stage     interview.Stage `json:"stage"`
	SessionID string          `json:"session_id"`
}

type turnRequest struct {
	Audio             []byte                `json:"audio"`
	Stage             interview.Stage       `json:"stage"`
	SessionID         string                `json:"session_id"`
	Transcript        []interview.Utterance `json:"transcript"`
	ConversationPhase string                `json:"conversation_phase,omitempty"`
	AskedQuestions    []string              `json:"asked_questions"`
}

// StatusError is a non-2xx response from a fallback endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: fallback status %d: %s", e.StatusCode, e.Body)
}

// Fallback is the turn-based HTTP transport. Every call is a single
// request; it holds no connection state.
type Fallback struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewFallback returns a Fallback for the endpoints under baseURL.
func NewFallback(baseURL, apiKey string, client *http.Client) *Fallback {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fallback{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Begin asks the agent for its opening message, reusing sessionID.
func (f *Fallback) Begin(ctx context.Context, stage interview.Stage, sessionID string) (*BeginResult, error) {
	var res BeginResult
	if err := f.post(ctx, PathStart, startRequest{Stage: stage, SessionID: sessionID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Turn sends one recorded candidate turn and returns the agent's reply.
func (f *Fallback) Turn(ctx context.Context, audio []byte, tc TurnContext) (*TurnResult, error) {
	req := turnRequest{
		Audio:             audio,
		Stage:             tc.Stage,
		SessionID:         tc.SessionID,
		Transcript:        tc.Transcript,
		ConversationPhase: tc.Phase,
		AskedQuestions:    tc.AskedQuestions,
	}
	if req.Transcript == nil {
		req.Transcript = []interview.Utterance{}
	}
	if req.AskedQuestions == nil {
		req.AskedQuestions = []string{}
	}
	var res TurnResult
	if err := f.post(ctx, PathTurn, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (f *Fallback) post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return interview.NewError(interview.KindTransport, "fallback "+path, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return interview.NewError(interview.KindTransport, "fallback "+path,
			&StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))})
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return interview.NewError(interview.KindProtocol, "fallback "+path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
