package types

import "spacebot-echo-show/internal/directive"

// TurnRequest is what the voice-dispatch layer sends for one utterance.
type TurnRequest struct {
	AppID                         string `json:"appId"`
	UserID                        string `json:"userId"`
	DeviceID                      string `json:"deviceId"`
	RequestID                     string `json:"requestId,omitempty"`
	Utterance                     string `json:"utterance"`
	DeviceSupportsVisualRendering bool   `json:"deviceSupportsVisualRendering"`
}

// TurnResponse is always returned to the voice platform, even on failure.
type TurnResponse struct {
	SpeechText string               `json:"speechText"`
	CardText   string               `json:"cardText"`
	Directive  *directive.Directive `json:"directive,omitempty"`
	// Diagnostics for the adapter's own callers; the platform ignores them.
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	TimedOut       bool   `json:"timedOut,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
