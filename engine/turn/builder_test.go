package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caucehq/cauce/provider"
)

func TestBuildText(t *testing.T) {
	msg := &provider.Message{
		ID:        "wamid.1",
		From:      "573001112233",
		Type:      provider.TypeText,
		Timestamp: 1735689600, // 2025-01-01T00:00:00Z
		Text:      &provider.TextBody{Body: "Hola, ¿tienen domicilios?"},
	}

	tr, err := Build("T1", msg)
	require.NoError(t, err)

	assert.Equal(t, "T1", tr.TenantID)
	assert.Equal(t, "573001112233", tr.WaID)
	assert.Equal(t, "wamid.1", tr.MessageID)
	assert.Equal(t, "Hola, ¿tienen domicilios?", tr.Text)
	assert.Equal(t, "2025-01-01T00:00:00Z", tr.Timestamp)
	assert.Nil(t, tr.Payload)
}

func TestBuildRendering(t *testing.T) {
	tests := []struct {
		name string
		msg  *provider.Message
		want string
	}{
		{
			name: "text without body",
			msg:  &provider.Message{Type: provider.TypeText},
			want: "",
		},
		{
			name: "audio with transcription",
			msg: &provider.Message{
				Type:  provider.TypeAudio,
				Audio: &provider.AudioBody{Voice: true, Transcription: "quiero hacer un pedido"},
			},
			want: "quiero hacer un pedido",
		},
		{
			name: "audio without transcription",
			msg:  &provider.Message{Type: provider.TypeAudio, Audio: &provider.AudioBody{Voice: true}},
			want: "[Audio message]",
		},
		{
			name: "button with text",
			msg:  &provider.Message{Type: provider.TypeButton, Button: &provider.ButtonBody{Text: "Ver menú"}},
			want: "Ver menú",
		},
		{
			name: "button without text",
			msg:  &provider.Message{Type: provider.TypeButton, Button: &provider.ButtonBody{Payload: "MENU"}},
			want: "[Button response]",
		},
		{
			name: "location",
			msg:  &provider.Message{Type: provider.TypeLocation, Location: &provider.LocationBody{Latitude: 4.6, Longitude: -74.08}},
			want: "[Location shared]",
		},
		{
			name: "contacts",
			msg:  &provider.Message{Type: provider.TypeContacts},
			want: "[Contact card shared]",
		},
		{
			name: "document with filename",
			msg:  &provider.Message{Type: provider.TypeDocument, Document: &provider.DocumentBody{Filename: "factura.pdf"}},
			want: "[Document: factura.pdf]",
		},
		{
			name: "document without filename",
			msg:  &provider.Message{Type: provider.TypeDocument},
			want: "[Document shared]",
		},
		{
			name: "image",
			msg:  &provider.Message{Type: provider.TypeImage},
			want: "[Image shared]",
		},
		{
			name: "video",
			msg:  &provider.Message{Type: provider.TypeVideo},
			want: "[Video shared]",
		},
		{
			name: "sticker",
			msg:  &provider.Message{Type: provider.TypeSticker},
			want: "[Sticker shared]",
		},
		{
			name: "unknown type placeholder",
			msg:  &provider.Message{Type: provider.MessageType("reaction")},
			want: "[reaction message]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.msg.ID = "wamid.x"
			tt.msg.From = "U1"
			tr, err := Build("T1", tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Text)
		})
	}
}

func TestBuildButtonPayload(t *testing.T) {
	msg := &provider.Message{
		ID:     "wamid.1",
		From:   "U1",
		Type:   provider.TypeButton,
		Button: &provider.ButtonBody{Text: "Confirmar pedido", Payload: "CONFIRM_ORDER"},
	}

	tr, err := Build("T1", msg)
	require.NoError(t, err)

	require.NotNil(t, tr.Payload)
	assert.Equal(t, "button", tr.Payload["type"])
	assert.Equal(t, "Confirmar pedido", tr.Payload["text"])
	assert.Equal(t, "CONFIRM_ORDER", tr.Payload["payload"])
}

func TestBuildNoPayloadForPlainTypes(t *testing.T) {
	msg := &provider.Message{
		ID: "wamid.1", From: "U1",
		Type: provider.TypeText,
		Text: &provider.TextBody{Body: "hola"},
	}
	tr, err := Build("T1", msg)
	require.NoError(t, err)
	assert.Nil(t, tr.Payload)
}

func TestBuildRejectsNonOrchestrable(t *testing.T) {
	tests := []struct {
		name string
		msg  *provider.Message
	}{
		{"nil record", nil},
		{"unsupported type", &provider.Message{ID: "m1", From: "U1", Type: provider.TypeUnsupported}},
		{"provider errors", &provider.Message{
			ID: "m2", From: "U1", Type: provider.TypeText,
			Text:   &provider.TextBody{Body: "hola"},
			Errors: []provider.ErrorDetail{{Code: 131051, Title: "Unsupported message type"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("T1", tt.msg)
			assert.ErrorIs(t, err, ErrNotOrchestrable)
		})
	}
}

func TestBuildTimestampIsUTC(t *testing.T) {
	msg := &provider.Message{
		ID: "m1", From: "U1", Type: provider.TypeText,
		Timestamp: 1756080000, // 2025-08-25T00:00:00Z
		Text:      &provider.TextBody{Body: "hola"},
	}
	tr, err := Build("T1", msg)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-25T00:00:00Z", tr.Timestamp)
}
