package protocol

import "unicode/utf8"

// DefaultMTU is the largest attribute value the clock negotiates.
const DefaultMTU = 512

// FrameHeader is the size of the index/total prefix on each framed chunk.
const FrameHeader = 2

// Chunk splits data into pieces of at most max bytes. It never splits in
// the middle of a UTF-8 sequence, so JSON chunks stay printable on their
// own; a single rune wider than max is emitted whole. Returns nil for empty
// data or a non-positive max.
func Chunk(data []byte, max int) [][]byte {
	if len(data) == 0 || max <= 0 {
		return nil
	}
	var chunks [][]byte
	for len(data) > 0 {
		if len(data) <= max {
			chunks = append(chunks, data)
			break
		}
		split := max
		for split > 0 && !utf8.RuneStart(data[split]) {
			split--
		}
		if split == 0 {
			// rune longer than max: take it whole to make progress
			_, size := utf8.DecodeRune(data)
			split = size
		}
		chunks = append(chunks, data[:split])
		data = data[split:]
	}
	return chunks
}
