// Package blob models the immutable ingestion record (C1): a chat
// transcript or a free-text document, keyed by (project, user, blob_id).
package blob

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type distinguishes the two blob variants.
type Type string

const (
	TypeChat Type = "chat"
	TypeDoc  Type = "doc"
)

// Role is the speaker role of one chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat blob.
type Message struct {
	Role      Role
	Content   string
	Alias     string     // optional speaker alias, e.g. a character name
	Timestamp *time.Time // optional per-message timestamp
}

// Chat is the ordered-messages variant of a blob.
type Chat struct {
	Messages []Message
}

// Doc is the free-text variant of a blob.
type Doc struct {
	Text string
}

// Blob is one immutable ingestion record.
type Blob struct {
	ID        string
	ProjectID string
	UserID    string
	Type      Type
	Chat      *Chat
	Doc       *Doc
	CreatedAt time.Time
}

// Render renders the blob as a transcript fragment suitable for prompt
// input: timestamped, named messages for chat; normalized text for doc.
func (b *Blob) Render() string {
	switch b.Type {
	case TypeChat:
		return renderChat(b.Chat)
	case TypeDoc:
		return Normalize(b.Doc.Text)
	default:
		return ""
	}
}

func renderChat(c *Chat) string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	for _, m := range c.Messages {
		speaker := string(m.Role)
		if m.Alias != "" {
			speaker = m.Alias
		}
		if m.Timestamp != nil {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", m.Timestamp.Format(time.RFC3339), speaker, m.Content)
		} else {
			fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Content)
		}
	}
	return sb.String()
}

// Store persists blobs and supports the cascading delete required when a
// user is removed.
type Store interface {
	PutBlob(ctx context.Context, projectID, userID string, b *Blob) (string, error)
	GetBlob(ctx context.Context, projectID, userID, blobID string) (*Blob, error)
	DeleteBlob(ctx context.Context, projectID, userID, blobID string) error
	ListBlobs(ctx context.Context, projectID, userID string, t Type, page, pageSize int) ([]string, error)
	DeleteUserBlobs(ctx context.Context, projectID, userID string) error
}
