// Package chat drives conversation turns: it validates a submission, records it in the conversation state
// and settles the turn with either a streamed or a buffered reply from the completion endpoint.
package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/deepseek-chat/internal/models"
)

// FallbackMessage is the assistant reply recorded when a turn fails.
const FallbackMessage = "Sorry, there was an error processing your request. Please try again."

const errLoggerKey = "err"

var errEmptyReply = errors.New("empty reply")

// LLM is the completion endpoint used to answer a turn. Stream returns once the response headers are
// received and yields the reply deltas afterwards. Complete returns the whole reply, calling onHeaders
// when the response headers are received.
type LLM interface {
	Stream(ctx context.Context, messages []models.Message) (iter.Seq2[string, error], error)
	Complete(ctx context.Context, messages []models.Message, onHeaders func()) (string, error)
}

// Turn is one accepted submission waiting to be answered.
type Turn struct {
	UserMessage models.Message
	// History is the conversation sent to the endpoint, ending with UserMessage.
	History []models.Message
	// Streaming is the mode chosen when the turn was accepted.
	Streaming bool
}

// Session holds the conversation of one chat and serializes every change to it. Only one turn can be in
// flight at a time.
type Session struct {
	llm    LLM
	logger *slog.Logger

	mu       sync.Mutex
	state    models.State
	onChange func(models.State)
}

// NewSession creates a Session with an empty conversation and streaming enabled. onChange, if not nil, is
// called with the new state after every change, while the session lock is held, so calls are ordered.
func NewSession(llm LLM, onChange func(models.State), logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		llm:      llm,
		logger:   logger.With(slog.String("module", "chat")),
		state:    models.NewState(),
		onChange: onChange,
	}
}

// State returns the current state.
func (s *Session) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetStreaming selects the mode of the following turns.
func (s *Session) SetStreaming(enabled bool) {
	s.apply(func(st models.State) models.State {
		return st.WithStreaming(enabled)
	})
}

// Submit accepts input and answers it in the background. It returns false, without touching the
// conversation, if the input is blank or another turn is in flight.
func (s *Session) Submit(ctx context.Context, input string) bool {
	turn, ok := s.Begin(input)
	if !ok {
		return false
	}
	go s.Run(ctx, turn)
	return true
}

// Begin trims input and, unless it is empty or a turn is already in flight, appends it as a user message
// and marks the session as loading. The returned Turn must be passed to Run.
func (s *Session) Begin(input string) (Turn, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Turn{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Loading {
		return Turn{}, false
	}

	msg := models.NewMessage(models.RoleUser, input)
	s.set(s.state.Append(msg).WithLoading(true).WithThinking(true))

	return Turn{
		UserMessage: msg,
		History:     s.state.Messages,
		Streaming:   s.state.Streaming,
	}, true
}

// Run answers turn and settles it. On return the session is no longer loading.
func (s *Session) Run(ctx context.Context, turn Turn) {
	defer s.apply(func(st models.State) models.State {
		return st.WithLoading(false).WithThinking(false)
	})

	var err error
	if turn.Streaming {
		err = s.runStream(ctx, turn)
	} else {
		err = s.runBuffered(ctx, turn)
	}
	if err == nil {
		return
	}

	s.logger.Error("Turn failed",
		slog.String("userMessageID", turn.UserMessage.ID),
		slog.Bool("streaming", turn.Streaming),
		slog.String(errLoggerKey, err.Error()))

	s.apply(func(st models.State) models.State {
		return st.WithThinking(false).Append(models.NewMessage(models.RoleAssistant, FallbackMessage))
	})
}

func (s *Session) runStream(ctx context.Context, turn Turn) error {
	deltas, err := s.llm.Stream(ctx, turn.History)
	if err != nil {
		return err
	}

	// The reply target exists before any delta is decoded.
	ai := models.NewMessage(models.RoleAssistant, "")
	var ref models.MessageRef
	s.apply(func(st models.State) models.State {
		st = st.WithThinking(false).Append(ai)
		ref, _ = st.Ref(ai.ID)
		return st
	})

	for delta, err := range deltas {
		if err != nil {
			return err
		}
		s.apply(func(st models.State) models.State {
			return st.AppendDelta(ref, delta)
		})
	}
	return nil
}

func (s *Session) runBuffered(ctx context.Context, turn Turn) error {
	content, err := s.llm.Complete(ctx, turn.History, func() {
		s.apply(func(st models.State) models.State {
			return st.WithThinking(false)
		})
	})
	if err != nil {
		return err
	}
	if content == "" {
		return errEmptyReply
	}

	s.apply(func(st models.State) models.State {
		return st.Append(models.NewMessage(models.RoleAssistant, content))
	})
	return nil
}

func (s *Session) apply(fn func(models.State) models.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(fn(s.state))
}

// set must be called with mu held.
func (s *Session) set(st models.State) {
	s.state = st
	if s.onChange != nil {
		s.onChange(st)
	}
}
