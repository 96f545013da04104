package prompt

import (
	"fmt"
	"strings"

	"github.com/memobase-dev/memobase-go/project"
)

// RenderedSlot is one profile slot ready for context-pack rendering.
type RenderedSlot struct {
	Topic    string
	SubTopic string
	Content  string
}

// RenderedEvent is one event ready for context-pack rendering.
type RenderedEvent struct {
	DatedTip     string // "2026-07-30: <event_tip>"
	ProfileLines []string
}

// ContextPack is the pure composition stage (§4.6's "Context-pack"): no
// LLM involved, just template rendering in the project's language.
func ContextPack(lang project.Language, slots []RenderedSlot, events []RenderedEvent) string {
	var sb strings.Builder

	profileHeader, eventHeader := "Profile", "Recent events"
	if lang == project.LanguageZH {
		profileHeader, eventHeader = "用户画像", "近期事件"
	}

	if len(slots) > 0 {
		sb.WriteString(profileHeader)
		sb.WriteString(":\n")
		for _, s := range slots {
			fmt.Fprintf(&sb, "%s::%s: %s\n", s.Topic, s.SubTopic, s.Content)
		}
	}

	if len(events) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(eventHeader)
		sb.WriteString(":\n")
		for _, e := range events {
			sb.WriteString(e.DatedTip)
			sb.WriteString("\n")
			for _, line := range e.ProfileLines {
				sb.WriteString("  - ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RenderSlot renders one slot the way the composer's token budget
// measures it: "topic::sub_topic: content" (§4.9).
func RenderSlot(topic, subTopic, content string) string {
	return fmt.Sprintf("%s::%s: %s", topic, subTopic, content)
}
