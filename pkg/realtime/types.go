package realtime

// ModelDefault is the model requested when none is configured.
const ModelDefault = "gpt-4o-realtime-preview"

// Audio formats.
const (
	// AudioFormatPCM16 is 16-bit PCM audio at 24kHz, mono, little-endian.
	AudioFormatPCM16 = "pcm16"
)

// SampleRate is the sample rate of AudioFormatPCM16.
const SampleRate = 24000

// Voice options for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// VAD modes for turn detection.
const (
	VADServerVAD   = "server_vad"
	VADSemanticVAD = "semantic_vad"
)

// Modality types.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// SessionConfig is the payload of the one-time configure message.
type SessionConfig struct {
	// Modalities specifies the output modalities.
	// Default: ["text", "audio"]
	Modalities []string `json:"modalities,omitzero"`

	// Instructions is the system prompt for the interviewer persona.
	Instructions string `json:"instructions,omitzero"`

	// Voice is the voice ID for audio output.
	Voice string `json:"voice,omitzero"`

	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcription of candidate audio,
	// which produces UserTranscriptDone events.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection configures server-side end-of-turn detection.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	// Temperature controls randomness (0.6-1.2).
	Temperature *float64 `json:"temperature,omitzero"`
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model is the transcription model to use.
	// Default: whisper-1
	Model string `json:"model,omitzero"`
}

// TurnDetection configures voice activity detection on the agent side.
type TurnDetection struct {
	// Type is the VAD mode: "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero" yaml:"type,omitempty"`

	// Threshold is the VAD sensitivity (0.0-1.0).
	Threshold float64 `json:"threshold,omitzero" yaml:"threshold,omitempty"`

	// PrefixPaddingMs is the padding before speech start (ms).
	PrefixPaddingMs int `json:"prefix_padding_ms,omitzero" yaml:"prefix_padding_ms,omitempty"`

	// SilenceDurationMs is the silence duration that ends a turn (ms).
	SilenceDurationMs int `json:"silence_duration_ms,omitzero" yaml:"silence_duration_ms,omitempty"`

	// CreateResponse specifies whether to automatically create a response
	// when VAD detects end of speech.
	CreateResponse *bool `json:"create_response,omitzero" yaml:"create_response,omitempty"`
}

// DefaultTurnDetection returns server VAD with the agent defaults.
func DefaultTurnDetection() *TurnDetection {
	return &TurnDetection{
		Type:              VADServerVAD,
		Threshold:         0.5,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
	}
}
