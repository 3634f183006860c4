package transport

// Actions sent to the conversation service.
const (
	// ActionSpeechStart announces local VAD detected speech.
	ActionSpeechStart = "vad_speech_start"
	// ActionSpeechEnd announces local VAD detected end of speech.
	ActionSpeechEnd = "vad_speech_end"
	// ActionConversationStart opens a conversation.
	ActionConversationStart = "conversation_start"
	// ActionConversationEnd closes a conversation.
	ActionConversationEnd = "conversation_end"
	// ActionPlaybackFinished announces synthesized audio finished playing.
	ActionPlaybackFinished = "tts_playback_finished"
)

// Actions received from the conversation service.
const (
	// ActionUpdateASR carries a partial user transcript.
	ActionUpdateASR = "update_asr"
	// ActionFinishASR carries the final user transcript.
	ActionFinishASR = "finish_asr"
	// ActionInvalidASR signals the utterance was rejected.
	ActionInvalidASR = "invalid_asr_result"
	// ActionStartTTS signals audio synthesis began.
	ActionStartTTS = "start_tts"
	// ActionStopTTS signals audio synthesis was cancelled.
	ActionStopTTS = "stop_tts"
	// ActionUpdateResp carries a partial agent response.
	ActionUpdateResp = "update_resp"
	// ActionFinishResp carries the final agent response.
	ActionFinishResp = "finish_resp"
)

// Message is one JSON control message in either direction.
type Message struct {
	Action    string   `json:"action"`
	Timestamp float64  `json:"timestamp,omitempty"`
	Data      *Payload `json:"data,omitempty"`
}

// Payload is the optional message body.
type Payload struct {
	Text      string  `json:"text,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`

	// SessionID identifies the conversation on conversation_start.
	SessionID string `json:"session_id,omitempty"`
}

// Text returns the message text, tolerating a missing payload.
func (m *Message) Text() string {
	if m.Data == nil {
		return ""
	}
	return m.Data.Text
}
