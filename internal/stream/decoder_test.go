package stream_test

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/MegaGrindStone/deepseek-chat/internal/stream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chunk(content string) string {
	return `data: {"choices":[{"index":0,"delta":{"content":"` + content + `"}}]}`
}

func collect(t *testing.T, r io.Reader) (string, error) {
	t.Helper()
	var sb strings.Builder
	for delta, err := range stream.Deltas(r, discardLogger()) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(delta)
	}
	return sb.String(), nil
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantOK    bool
		wantDelta string
		wantDone  bool
		wantErr   bool
	}{
		{name: "Blank line", line: "", wantOK: false},
		{name: "Whitespace line", line: "   ", wantOK: false},
		{name: "Comment", line: ": keep-alive", wantOK: false},
		{name: "Other field", line: "event: message", wantOK: false},
		{name: "Prefix without space", line: `data:{"choices":[]}`, wantOK: false},
		{name: "Done sentinel", line: "data: [DONE]", wantOK: true, wantDone: true},
		{name: "Delta", line: chunk("Hel"), wantOK: true, wantDelta: "Hel"},
		{name: "Role only", line: `data: {"choices":[{"delta":{"role":"assistant"}}]}`, wantOK: true},
		{name: "No choices", line: `data: {"choices":[]}`, wantOK: true},
		{name: "Null content", line: `data: {"choices":[{"delta":{"content":null}}]}`, wantOK: true},
		{name: "Malformed", line: "data: not-json", wantOK: true, wantErr: true},
		{name: "Truncated", line: `data: {"choices":[{"delta":{"cont`, wantOK: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := stream.ParseLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseLine() ok = %v, want %v", ok, tt.wantOK)
			}
			if f.Delta != tt.wantDelta {
				t.Errorf("ParseLine() delta = %q, want %q", f.Delta, tt.wantDelta)
			}
			if f.Done != tt.wantDone {
				t.Errorf("ParseLine() done = %v, want %v", f.Done, tt.wantDone)
			}
			if (f.Err != nil) != tt.wantErr {
				t.Errorf("ParseLine() err = %v, wantErr %v", f.Err, tt.wantErr)
			}
		})
	}
}

func TestDeltas(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "Single frame",
			body: chunk("Hello") + "\n\n" + "data: [DONE]\n\n",
			want: "Hello",
		},
		{
			name: "Malformed frame between well-formed frames",
			body: chunk("Hel") + "\n\ndata: not-json\n\n" + chunk("lo") + "\n\ndata: [DONE]\n\n",
			want: "Hello",
		},
		{
			name: "Done never contributes",
			body: "data: [DONE]\n\n",
			want: "",
		},
		{
			name: "Lines without prefix are ignored",
			body: ": ping\n\nevent: noise\n" + chunk("a") + "\nid: 1\n" + chunk("b") + "\n",
			want: "ab",
		},
		{
			name: "CRLF terminators",
			body: chunk("x") + "\r\n\r\n" + chunk("y") + "\r\n\r\ndata: [DONE]\r\n\r\n",
			want: "xy",
		},
		{
			name: "Trailing line without terminator",
			body: chunk("a") + "\n" + chunk("b"),
			want: "ab",
		},
		{
			name: "Empty body",
			body: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Deltas() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Deltas() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecoderChunkBoundaries(t *testing.T) {
	body := chunk("Hel") + "\n\n" +
		"data: not-json\n\n" +
		chunk("lo, wörld ") + "\r\n\r\n" +
		chunk("世界 🙂") + "\n\n" +
		"data: [DONE]\n\n"
	want := "Hello, wörld 世界 🙂"

	decode := func(parts ...[]byte) string {
		dec := stream.NewDecoder()
		var frames []stream.Frame
		for _, p := range parts {
			frames = append(frames, dec.Feed(p)...)
		}
		frames = append(frames, dec.Close()...)

		var sb strings.Builder
		for _, f := range frames {
			if f.Err == nil && !f.Done {
				sb.WriteString(f.Delta)
			}
		}
		return sb.String()
	}

	raw := []byte(body)
	if got := decode(raw); got != want {
		t.Fatalf("unsplit decode = %q, want %q", got, want)
	}

	for i := 0; i <= len(raw); i++ {
		if got := decode(raw[:i], raw[i:]); got != want {
			t.Fatalf("split at %d: decode = %q, want %q", i, got, want)
		}
	}

	for i := 0; i <= len(raw); i += 7 {
		for j := i; j <= len(raw); j++ {
			if got := decode(raw[:i], raw[i:j], raw[j:]); got != want {
				t.Fatalf("split at %d and %d: decode = %q, want %q", i, j, got, want)
			}
		}
	}

	got, err := collect(t, iotest.OneByteReader(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("Deltas() error = %v", err)
	}
	if got != want {
		t.Errorf("one byte reads: Deltas() = %q, want %q", got, want)
	}

	got, err = collect(t, iotest.HalfReader(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("Deltas() error = %v", err)
	}
	if got != want {
		t.Errorf("half reads: Deltas() = %q, want %q", got, want)
	}
}

func TestDecoderFrames(t *testing.T) {
	dec := stream.NewDecoder()

	if frames := dec.Feed([]byte("data: [DO")); len(frames) != 0 {
		t.Fatalf("Feed() returned %d frames for an incomplete line, want 0", len(frames))
	}
	frames := dec.Feed([]byte("NE]\n" + chunk("hi") + "\n"))
	if len(frames) != 2 {
		t.Fatalf("Feed() returned %d frames, want 2", len(frames))
	}
	if !frames[0].Done {
		t.Errorf("frames[0].Done = false, want true")
	}
	if frames[1].Delta != "hi" {
		t.Errorf("frames[1].Delta = %q, want %q", frames[1].Delta, "hi")
	}
	if frames := dec.Close(); len(frames) != 0 {
		t.Errorf("Close() returned %d frames, want 0", len(frames))
	}
}

func TestDeltasReadError(t *testing.T) {
	errBoom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader(chunk("par")+"\n"+chunk("tial")+"\n"),
		iotest.ErrReader(errBoom),
	)

	got, err := collect(t, r)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Deltas() error = %v, want %v", err, errBoom)
	}
	if got != "partial" {
		t.Errorf("Deltas() before error = %q, want %q", got, "partial")
	}
}

func TestDeltasStopsWhenConsumerBreaks(t *testing.T) {
	body := chunk("a") + "\n" + chunk("b") + "\n" + chunk("c") + "\n"

	var got []string
	for delta, err := range stream.Deltas(strings.NewReader(body), nil) {
		if err != nil {
			t.Fatalf("Deltas() error = %v", err)
		}
		got = append(got, delta)
		if len(got) == 2 {
			break
		}
	}
	if strings.Join(got, "") != "ab" {
		t.Errorf("Deltas() = %v, want [a b]", got)
	}
}
