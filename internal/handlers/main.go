package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"strings"
	"time"

	deepseekchat "github.com/MegaGrindStone/deepseek-chat"
	"github.com/MegaGrindStone/deepseek-chat/internal/chat"
	"github.com/MegaGrindStone/deepseek-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Main serves the chat page, accepts submissions and pushes every change of the conversation to the
// connected browsers through server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	session *chat.Session
	model   string

	// ctx bounds the lifetime of in-flight turns; it is cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

type status struct {
	Loading   bool `json:"loading"`
	Thinking  bool `json:"thinking"`
	Streaming bool `json:"streaming"`
}

const errLoggerKey = "err"

// SSE event types for real-time updates.
var (
	conversationSSEType = sse.Type("conversation")
	statusSSEType       = sse.Type("status")
)

// NewMain creates a Main answering turns with llm. It parses the HTML templates from the embedded
// filesystem and prepares the SSE server every page subscribes to. model is only displayed.
func NewMain(llm chat.LLM, model string, logger *slog.Logger) (Main, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		deepseekchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic},
				}, true
			},
		},
		templates: tmpl,
		model:     model,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "main")),
	}
	m.session = chat.NewSession(llm, m.publish, logger)

	return m, nil
}

// Session returns the conversation served by m.
func (m Main) Session() *chat.Session {
	return m.session
}

// Shutdown cancels in-flight turns, tells connected clients to close and waits up to 5 seconds for their
// connections to terminate. After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.cancel()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// Browsers drop SSE events without data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// publish pushes st to every subscriber. It runs under the session lock, so events leave in the order
// the state changed.
func (m Main) publish(st models.State) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "messages", newPageData(st, m.model)); err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		return
	}

	conv := sse.Message{Type: conversationSSEType}
	conv.AppendData(sb.String())
	if err := m.sseSrv.Publish(&conv); err != nil {
		m.logger.Error("Failed to publish conversation", slog.String(errLoggerKey, err.Error()))
		return
	}

	b, err := json.Marshal(status{Loading: st.Loading, Thinking: st.Thinking, Streaming: st.Streaming})
	if err != nil {
		m.logger.Error("Failed to marshal status", slog.String(errLoggerKey, err.Error()))
		return
	}
	sm := sse.Message{Type: statusSSEType}
	sm.AppendData(string(b))
	if err := m.sseSrv.Publish(&sm); err != nil {
		m.logger.Error("Failed to publish status", slog.String(errLoggerKey, err.Error()))
	}
}
