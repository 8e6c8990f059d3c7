package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
)

// HandleHome renders the chat page with the current conversation.
func (m Main) HandleHome(w http.ResponseWriter, _ *http.Request) {
	data := newPageData(m.session.State(), m.model)
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleChats accepts a user message from the "message" form field and starts answering it. The reply is
// delivered through the SSE stream, not in this response.
//
// It responds 202 when the turn was started, and 204 when the submission was ignored because the
// message is blank or a previous turn is still in flight.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The turn outlives the request, so it runs on the server's context.
	if !m.session.Submit(m.ctx, r.FormValue("message")) {
		m.logger.Debug("Submission ignored")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleStreamSetting switches between streamed and buffered replies using the boolean "enabled" form
// field.
func (m Main) HandleStreamSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled, err := strconv.ParseBool(r.FormValue("enabled"))
	if err != nil {
		m.logger.Error("Invalid stream setting",
			slog.String("enabled", r.FormValue("enabled")),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "enabled must be a boolean", http.StatusBadRequest)
		return
	}

	m.session.SetStreaming(enabled)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE subscribes the client to conversation updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
