// Package provider defines the contracts shared with the chat provider
// integration: the stored inbound message record consumed by the turn
// builder, the outbound message emitted by agents, and the Sender that
// performs delivery.
package provider

// Direction distinguishes stored inbound user messages from the business's
// own outbound traffic.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageType is the provider-assigned message type.
type MessageType string

const (
	TypeText        MessageType = "text"
	TypeAudio       MessageType = "audio"
	TypeButton      MessageType = "button"
	TypeLocation    MessageType = "location"
	TypeContacts    MessageType = "contacts"
	TypeDocument    MessageType = "document"
	TypeImage       MessageType = "image"
	TypeVideo       MessageType = "video"
	TypeSticker     MessageType = "sticker"
	TypeUnsupported MessageType = "unsupported"
)

// IsValid checks if the message type is one the provider documents.
// Unknown types still flow through the engine with a placeholder rendering.
func (t MessageType) IsValid() bool {
	switch t {
	case TypeText, TypeAudio, TypeButton, TypeLocation, TypeContacts,
		TypeDocument, TypeImage, TypeVideo, TypeSticker, TypeUnsupported:
		return true
	default:
		return false
	}
}

// TextBody is the body of a plain text message. It doubles as the generic
// body for provider types this engine does not model explicitly.
type TextBody struct {
	Body string `json:"body"`
}

// AudioBody describes a voice note or audio attachment. Transcription is
// filled by the transcription pipeline before orchestration when available.
type AudioBody struct {
	ID            string `json:"id,omitempty"`
	SHA256        string `json:"sha256,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	Voice         bool   `json:"voice,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// ButtonBody is the reply payload of an interactive button press.
type ButtonBody struct {
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// DocumentBody describes a document attachment.
type DocumentBody struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

// LocationBody is a shared location pin.
type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ErrorDetail is a provider-reported delivery or decode error attached to a
// message record.
type ErrorDetail struct {
	Code    int    `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Message is the stored provider message record. Field names follow the
// provider wire format; only the fields the orchestration core reads are
// modeled, everything else stays with the ingestion layer.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Direction Direction   `json:"direction,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`

	Text     *TextBody        `json:"text,omitempty"`
	Audio    *AudioBody       `json:"audio,omitempty"`
	Button   *ButtonBody      `json:"button,omitempty"`
	Document *DocumentBody    `json:"document,omitempty"`
	Location *LocationBody    `json:"location,omitempty"`
	Contacts []map[string]any `json:"contacts,omitempty"`

	Errors []ErrorDetail `json:"errors,omitempty"`
}

// IsOutbound reports whether the record is the business's own outbound
// message. Outbound records are never orchestrated.
func (m *Message) IsOutbound() bool {
	return m.Direction == DirectionOutbound
}

// Orchestrable reports whether the record may be turned into a Turn.
// Records with provider errors or an unsupported type are recorded by the
// ingestion layer but skipped by the engine.
func (m *Message) Orchestrable() bool {
	return len(m.Errors) == 0 && m.Type != TypeUnsupported
}
