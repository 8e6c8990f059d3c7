package stream_test

import (
	"testing"

	"github.com/MegaGrindStone/deepseek-chat/internal/stream"
)

func TestTextDecoderSplitRunes(t *testing.T) {
	input := []byte("aé世🙂z")

	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			dec := stream.NewTextDecoder()
			got := dec.Decode(input[:i], false) + dec.Decode(input[i:j], false) + dec.Decode(input[j:], true)
			if got != string(input) {
				t.Fatalf("split at %d,%d: Decode() = %q, want %q", i, j, got, string(input))
			}
		}
	}
}

func TestTextDecoderHoldsIncompleteSequence(t *testing.T) {
	dec := stream.NewTextDecoder()
	euro := []byte("€")

	if got := dec.Decode(euro[:1], false); got != "" {
		t.Errorf("Decode() first byte = %q, want empty", got)
	}
	if got := dec.Decode(euro[1:2], false); got != "" {
		t.Errorf("Decode() second byte = %q, want empty", got)
	}
	if got := dec.Decode(euro[2:], false); got != "€" {
		t.Errorf("Decode() last byte = %q, want %q", got, "€")
	}
}

func TestTextDecoderInvalidBytes(t *testing.T) {
	tests := []struct {
		name  string
		parts [][]byte
		want  string
	}{
		{
			name:  "Invalid byte mid stream",
			parts: [][]byte{{'a', 0xff, 'b'}},
			want:  "a�b",
		},
		{
			name:  "Incomplete sequence at end",
			parts: [][]byte{{'a', 0xe2}},
			want:  "a�",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := stream.NewTextDecoder()
			var got string
			for _, p := range tt.parts {
				got += dec.Decode(p, false)
			}
			got += dec.Decode(nil, true)
			if got != tt.want {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLineBuffer(t *testing.T) {
	var b stream.LineBuffer

	if lines := b.Feed("data: a"); len(lines) != 0 {
		t.Fatalf("Feed() = %q, want no lines", lines)
	}
	lines := b.Feed("bc\r")
	if len(lines) != 0 {
		t.Fatalf("Feed() = %q, want no lines", lines)
	}
	lines = b.Feed("\n\nnext\nrest")
	want := []string{"data: abc", "", "next"}
	if len(lines) != len(want) {
		t.Fatalf("Feed() = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	line, ok := b.Flush()
	if !ok || line != "rest" {
		t.Errorf("Flush() = %q, %v, want %q, true", line, ok, "rest")
	}
	if _, ok := b.Flush(); ok {
		t.Error("Flush() on empty buffer returned true")
	}
}
