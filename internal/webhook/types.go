package webhook

// MessageType is the backend's inbound message kind. Values outside the
// known set are kept verbatim and ignored by aggregation.
type MessageType string

const (
	TypeStreamStart MessageType = "stream_start"
	TypeStreamChunk MessageType = "stream_chunk"
	TypeStreamEnd   MessageType = "stream_end"
	TypeText        MessageType = "text"
)

// OutboundMessage is the body of POST /send.
type OutboundMessage struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	AgentID        string `json:"agent_id,omitempty"`
}

// InboundMessage is one element of the poll response's messages list.
type InboundMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`
}

// ReplyCollection is the outcome of one CollectReply loop.
type ReplyCollection struct {
	Text             string
	RawMessages      []InboundMessage
	TimedOut         bool
	ReceivedMessages bool
}
