// Package stream decodes the line-oriented event stream returned by a streaming chat completion
// endpoint into text deltas.
//
// Raw bytes pass through a stateful UTF-8 decoder, the decoded text is split into lines by a buffer that
// keeps incomplete lines across reads, and every "data: " line is parsed as a completion chunk. A
// malformed chunk never stops the stream.
package stream
