package ingest

import (
	"strings"

	"github.com/lazypower/recall/internal/model"
)

const (
	edgeAssistantMax = 1000
	midAssistantMax  = 200
)

// Condense folds a transcript into a single page. Every user message is kept
// whole. The first and last assistant messages keep up to 1000 characters
// and the ones between keep 200. It returns false when there is nothing to
// condense.
func Condense(messages []Message, source string) (model.Page, bool) {
	var users, assistants []Message
	for _, m := range messages {
		switch m.Type {
		case "user":
			users = append(users, m)
		case "assistant":
			assistants = append(assistants, m)
		}
	}
	if len(users) == 0 && len(assistants) == 0 {
		return model.Page{}, false
	}

	var b strings.Builder
	for _, u := range users {
		b.WriteString("[USER] ")
		b.WriteString(u.Text)
		b.WriteString("\n\n")
	}
	for i, a := range assistants {
		limit := midAssistantMax
		if i == 0 || i == len(assistants)-1 {
			limit = edgeAssistantMax
		}
		b.WriteString("[ASSISTANT] ")
		b.WriteString(clip(a.Text, limit))
		b.WriteString("\n\n")
	}

	return model.Page{
		Header:  source,
		Content: strings.TrimSpace(b.String()),
		Meta: map[string]any{
			MetaSource: source,
			"messages": len(users) + len(assistants),
		},
	}, true
}

func clip(s string, n int) string {
	t := model.Truncate(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}
