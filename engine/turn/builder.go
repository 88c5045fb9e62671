package turn

import (
	"errors"
	"fmt"
	"time"

	"github.com/caucehq/cauce/provider"
)

// ErrNotOrchestrable marks records the engine must skip: provider errors
// attached to the message or an unsupported type.
var ErrNotOrchestrable = errors.New("message not orchestrable")

// Build converts a stored inbound record into a Turn. The provider epoch
// timestamp becomes RFC3339 UTC.
func Build(tenantID string, msg *provider.Message) (*Turn, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil record", ErrNotOrchestrable)
	}
	if len(msg.Errors) > 0 {
		return nil, fmt.Errorf("%w: provider reported %d errors", ErrNotOrchestrable, len(msg.Errors))
	}
	if msg.Type == provider.TypeUnsupported {
		return nil, fmt.Errorf("%w: unsupported message type", ErrNotOrchestrable)
	}
	return &Turn{
		TenantID:  tenantID,
		WaID:      msg.From,
		MessageID: msg.ID,
		Text:      renderText(msg),
		Payload:   interactivePayload(msg),
		Timestamp: time.Unix(msg.Timestamp, 0).UTC().Format(time.RFC3339),
	}, nil
}

// renderText produces the textual representation per message type.
func renderText(msg *provider.Message) string {
	switch msg.Type {
	case provider.TypeText:
		if msg.Text != nil {
			return msg.Text.Body
		}
		return ""
	case provider.TypeAudio:
		if msg.Audio != nil && msg.Audio.Transcription != "" {
			return msg.Audio.Transcription
		}
		return "[Audio message]"
	case provider.TypeButton:
		if msg.Button != nil && msg.Button.Text != "" {
			return msg.Button.Text
		}
		return "[Button response]"
	case provider.TypeLocation:
		return "[Location shared]"
	case provider.TypeContacts:
		return "[Contact card shared]"
	case provider.TypeDocument:
		if msg.Document != nil && msg.Document.Filename != "" {
			return "[Document: " + msg.Document.Filename + "]"
		}
		return "[Document shared]"
	case provider.TypeImage:
		return "[Image shared]"
	case provider.TypeVideo:
		return "[Video shared]"
	case provider.TypeSticker:
		return "[Sticker shared]"
	default:
		if msg.Text != nil && msg.Text.Body != "" {
			return msg.Text.Body
		}
		return "[" + string(msg.Type) + " message]"
	}
}

// interactivePayload extracts the structured payload for interactive types.
// Plain content types carry no payload.
func interactivePayload(msg *provider.Message) map[string]any {
	if msg.Type != provider.TypeButton || msg.Button == nil {
		return nil
	}
	p := map[string]any{"type": "button"}
	if msg.Button.Text != "" {
		p["text"] = msg.Button.Text
	}
	if msg.Button.Payload != "" {
		p["payload"] = msg.Button.Payload
	}
	return p
}
