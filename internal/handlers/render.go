package handlers

import (
	"bytes"
	"html/template"

	"github.com/MegaGrindStone/deepseek-chat/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type message struct {
	ID      string
	Role    string
	Content template.HTML

	// Reasoning marks an assistant reply made only of a <think> block.
	Reasoning bool
	// Cursor is shown on the reply that is still being received.
	Cursor bool
}

type pageData struct {
	Messages  []message
	Loading   bool
	Thinking  bool
	Streaming bool
	Model     string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	// goldmark escapes raw HTML unless html.WithUnsafe is set.
	return template.HTML(buf.String())
}

func newPageData(st models.State, model string) pageData {
	msgs := make([]message, 0, len(st.Messages))
	for i, msg := range st.Messages {
		inFlight := st.Loading && i == len(st.Messages)-1 && msg.Role == models.RoleAssistant

		m := message{
			ID:     msg.ID,
			Role:   string(msg.Role),
			Cursor: inFlight,
		}

		switch {
		case msg.Role == models.RoleUser:
			m.Content = template.HTML(template.HTMLEscapeString(msg.Content))
		case msg.Content == "":
			if !inFlight {
				continue
			}
		default:
			if body, ok := models.SplitReasoning(msg.Content); ok {
				m.Reasoning = true
				m.Content = renderMarkdown(body)
			} else {
				m.Content = renderMarkdown(msg.Content)
			}
		}
		msgs = append(msgs, m)
	}

	return pageData{
		Messages:  msgs,
		Loading:   st.Loading,
		Thinking:  st.Thinking,
		Streaming: st.Streaming,
		Model:     model,
	}
}
