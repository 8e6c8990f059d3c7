package stream

import "strings"

// LineBuffer splits text into lines. Text after the last newline is kept until a later Feed completes
// it or Flush drains it.
type LineBuffer struct {
	partial strings.Builder
}

// Feed appends text and returns every line completed by it, without the line terminator. A "\r"
// preceding the newline is dropped as well.
func (b *LineBuffer) Feed(text string) []string {
	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			b.partial.WriteString(text)
			return lines
		}

		line := text[:i]
		if b.partial.Len() > 0 {
			b.partial.WriteString(line)
			line = b.partial.String()
			b.partial.Reset()
		}
		lines = append(lines, strings.TrimSuffix(line, "\r"))
		text = text[i+1:]
	}
}

// Flush returns the incomplete trailing line, if any, and empties the buffer.
func (b *LineBuffer) Flush() (string, bool) {
	if b.partial.Len() == 0 {
		return "", false
	}
	line := strings.TrimSuffix(b.partial.String(), "\r")
	b.partial.Reset()
	return line, true
}
