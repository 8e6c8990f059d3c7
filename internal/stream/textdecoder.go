package stream

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextDecoder turns a sequence of byte chunks into text. A multi-byte sequence that is split across two
// chunks is held back until the rest of it arrives; invalid bytes decode to U+FFFD.
type TextDecoder struct {
	t       transform.Transformer
	pending []byte
}

// NewTextDecoder creates a UTF-8 TextDecoder.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes p, prefixed by whatever was held back by the previous call. With final set, nothing is
// held back and the decoder is reset for reuse.
func (d *TextDecoder) Decode(p []byte, final bool) string {
	src := p
	if len(d.pending) > 0 {
		src = append(d.pending, p...)
		d.pending = nil
	}

	var sb strings.Builder
	buf := make([]byte, 3*len(src)+8)
	for {
		nDst, nSrc, err := d.t.Transform(buf, src, final)
		sb.Write(buf[:nDst])
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		if errors.Is(err, transform.ErrShortSrc) {
			d.pending = append([]byte(nil), src...)
		}
		break
	}

	if final {
		d.pending = nil
		d.t.Reset()
	}
	return sb.String()
}
