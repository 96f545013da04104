package blob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlob_Render_Chat(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	b := &Blob{
		Type: TypeChat,
		Chat: &Chat{Messages: []Message{
			{Role: RoleUser, Content: "hi there", Timestamp: &ts},
			{Role: RoleAssistant, Content: "hello", Alias: "Assistant Bot"},
		}},
	}
	out := b.Render()
	assert.Contains(t, out, "2026-01-02T15:04:05Z")
	assert.Contains(t, out, "user: hi there")
	assert.Contains(t, out, "Assistant Bot: hello")
}

func TestBlob_Render_Chat_Nil(t *testing.T) {
	b := &Blob{Type: TypeChat, Chat: nil}
	assert.Equal(t, "", b.Render())
}

func TestBlob_Render_Doc(t *testing.T) {
	b := &Blob{Type: TypeDoc, Doc: &Doc{Text: "plain text document"}}
	assert.Equal(t, "plain text document", b.Render())
}

func TestBlob_Render_UnknownType(t *testing.T) {
	b := &Blob{Type: Type("carrier-pigeon")}
	assert.Equal(t, "", b.Render())
}

func TestNormalize_PlainTextPassesThrough(t *testing.T) {
	assert.Equal(t, "just plain text", Normalize("just plain text"))
}

func TestNormalize_StripsHTML(t *testing.T) {
	out := Normalize("<p>Hello <b>world</b></p>")
	assert.Equal(t, "Hello world", out)
}

func TestNormalize_RendersMarkdown(t *testing.T) {
	out := Normalize("# Title\n\nSome **bold** text")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "#")
}

func TestNormalize_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "hi", Normalize("   hi   "))
}
