package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Client event types (sent from client to server).
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
)

// Server event types decoded into dedicated Event values.
const (
	EventTypeError                        = "error"
	EventTypeSessionUpdated               = "session.updated"
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"
	EventTypeResponseAudioDelta           = "response.audio.delta"
	EventTypeResponseDone                 = "response.done"

	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
)

// Server event types that carry nothing the session reads beyond their
// arrival. They decode to *Lifecycle.
var lifecycleTypes = map[string]bool{
	"session.created":                    true,
	"conversation.created":               true,
	"conversation.item.created":          true,
	"conversation.item.truncated":        true,
	"conversation.item.deleted":          true,
	"input_audio_buffer.committed":       true,
	"input_audio_buffer.cleared":         true,
	"input_audio_buffer.speech_started":  true,
	"input_audio_buffer.speech_stopped":  true,
	"response.created":                   true,
	EventTypeResponseDone:                true,
	"response.output_item.added":         true,
	"response.output_item.done":          true,
	"response.content_part.added":        true,
	"response.content_part.done":         true,
	"response.text.delta":                true,
	"response.text.done":                 true,
	"response.audio.done":                true,
	"rate_limits.updated":                true,

	"conversation.item.input_audio_transcription.failed": true,
}

// Event is an inbound message. The concrete type is one of
// *ConfigAcknowledged, *TranscriptDelta, *TranscriptDone,
// *UserTranscriptDone, *AudioDelta, *ErrorEvent or *Lifecycle.
type Event interface {
	// Type returns the wire type of the message.
	Type() string
	isEvent()
}

// ConfigAcknowledged reports that the configure message was applied.
type ConfigAcknowledged struct {
	SessionID string
}

// TranscriptDelta is a partial transcript of agent speech.
type TranscriptDelta struct {
	ResponseID string
	ItemID     string
	Delta      string
}

// TranscriptDone carries the final transcript of one agent utterance.
type TranscriptDone struct {
	ResponseID string
	ItemID     string
	Transcript string
}

// UserTranscriptDone carries the final transcript of one candidate utterance.
type UserTranscriptDone struct {
	ItemID     string
	Transcript string
}

// AudioDelta carries a piece of synthesized agent audio as PCM.
type AudioDelta struct {
	ResponseID string
	ItemID     string
	Audio      []byte
}

// ErrorEvent is an error reported in-band by the agent.
type ErrorEvent struct {
	Err *Error
}

// Lifecycle is a known message kind with no payload the client consumes.
type Lifecycle struct {
	Kind string
}

func (*ConfigAcknowledged) Type() string { return EventTypeSessionUpdated }
func (*TranscriptDelta) Type() string    { return EventTypeResponseAudioTranscriptDelta }
func (*TranscriptDone) Type() string     { return EventTypeResponseAudioTranscriptDone }
func (*UserTranscriptDone) Type() string {
	return EventTypeConversationItemInputAudioTranscriptionCompleted
}
func (*AudioDelta) Type() string  { return EventTypeResponseAudioDelta }
func (*ErrorEvent) Type() string  { return EventTypeError }
func (e *Lifecycle) Type() string { return e.Kind }

func (*ConfigAcknowledged) isEvent() {}
func (*TranscriptDelta) isEvent()    {}
func (*TranscriptDone) isEvent()     {}
func (*UserTranscriptDone) isEvent() {}
func (*AudioDelta) isEvent()         {}
func (*ErrorEvent) isEvent()         {}
func (*Lifecycle) isEvent()          {}

// wireEvent is the union of inbound fields the client reads.
type wireEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitzero"`
	ResponseID string `json:"response_id,omitzero"`
	ItemID     string `json:"item_id,omitzero"`
	Delta      string `json:"delta,omitzero"`
	Transcript string `json:"transcript,omitzero"`
	Session    *struct {
		ID string `json:"id"`
	} `json:"session,omitzero"`
	Error *Error `json:"error,omitzero"`
}

// ParseEvent decodes one inbound message. Unknown kinds return an error
// wrapping ErrUnknownEvent; undecodable messages wrap ErrMalformedEvent.
func ParseEvent(message []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(message, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	switch w.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	case EventTypeSessionUpdated:
		e := &ConfigAcknowledged{}
		if w.Session != nil {
			e.SessionID = w.Session.ID
		}
		return e, nil
	case EventTypeResponseAudioTranscriptDelta:
		return &TranscriptDelta{ResponseID: w.ResponseID, ItemID: w.ItemID, Delta: w.Delta}, nil
	case EventTypeResponseAudioTranscriptDone:
		return &TranscriptDone{ResponseID: w.ResponseID, ItemID: w.ItemID, Transcript: w.Transcript}, nil
	case EventTypeConversationItemInputAudioTranscriptionCompleted:
		return &UserTranscriptDone{ItemID: w.ItemID, Transcript: w.Transcript}, nil
	case EventTypeResponseAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(w.Delta)
		if err != nil {
			return nil, fmt.Errorf("%w: audio delta: %w", ErrMalformedEvent, err)
		}
		return &AudioDelta{ResponseID: w.ResponseID, ItemID: w.ItemID, Audio: audio}, nil
	case EventTypeError:
		e := w.Error
		if e == nil {
			e = &Error{Message: "unspecified error"}
		}
		return &ErrorEvent{Err: e}, nil
	}
	if lifecycleTypes[w.Type] {
		return &Lifecycle{Kind: w.Type}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Type)
}
