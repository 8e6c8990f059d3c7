package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	readSize = 4096

	errLoggerKey = "err"
)

// Frame is the outcome of a single "data: " line.
type Frame struct {
	// Data is the payload after the "data: " prefix.
	Data string
	// Delta is the text carried by choices[0].delta.content. It is empty when the chunk has no content.
	Delta string
	// Done is set for the "[DONE]" sentinel.
	Done bool
	// Err is set when Data is not a valid completion chunk.
	Err error
}

// ParseLine interprets one line of the stream. It returns false for lines that do not carry an event:
// blank lines and lines without the "data: " prefix.
func ParseLine(line string) (Frame, bool) {
	if strings.TrimSpace(line) == "" || !strings.HasPrefix(line, dataPrefix) {
		return Frame{}, false
	}

	f := Frame{Data: line[len(dataPrefix):]}
	if f.Data == doneSentinel {
		f.Done = true
		return f, true
	}

	var chunk goopenai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(f.Data), &chunk); err != nil {
		f.Err = fmt.Errorf("error unmarshaling chunk: %w", err)
		return f, true
	}
	if len(chunk.Choices) > 0 {
		f.Delta = chunk.Choices[0].Delta.Content
	}
	return f, true
}

// Decoder converts raw response bytes into frames. Bytes and lines split across Feed calls are
// reassembled, so the frames produced do not depend on how the body was chunked.
type Decoder struct {
	text  *TextDecoder
	lines LineBuffer
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{text: NewTextDecoder()}
}

// Feed consumes the next chunk of the body and returns the frames of every line it completed.
func (d *Decoder) Feed(chunk []byte) []Frame {
	return d.frames(d.lines.Feed(d.text.Decode(chunk, false)))
}

// Close flushes held-back bytes and the trailing line. It must be called once the body is exhausted.
func (d *Decoder) Close() []Frame {
	lines := d.lines.Feed(d.text.Decode(nil, true))
	if line, ok := d.lines.Flush(); ok {
		lines = append(lines, line)
	}
	return d.frames(lines)
}

func (d *Decoder) frames(lines []string) []Frame {
	var frames []Frame
	for _, line := range lines {
		if f, ok := ParseLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Deltas reads r until EOF and yields the non-empty text deltas in order. Malformed chunks are logged and
// skipped and the "[DONE]" sentinel is never yielded. A read error is yielded once and ends the sequence.
func Deltas(r io.Reader, logger *slog.Logger) iter.Seq2[string, error] {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("module", "stream"))

	return func(yield func(string, error) bool) {
		dec := NewDecoder()

		emit := func(frames []Frame) bool {
			for _, f := range frames {
				if f.Err != nil {
					logger.Error("Error parsing streaming response",
						slog.String("data", f.Data),
						slog.String(errLoggerKey, f.Err.Error()))
					continue
				}
				if f.Done || f.Delta == "" {
					continue
				}
				if !yield(f.Delta, nil) {
					return false
				}
			}
			return true
		}

		buf := make([]byte, readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 && !emit(dec.Feed(buf[:n])) {
				return
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) {
				emit(dec.Close())
				return
			}
			yield("", fmt.Errorf("error reading stream: %w", err))
			return
		}
	}
}
