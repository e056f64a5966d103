package app

import (
	"strings"

	"live-session-service/internal/domain"
)

// ChunkTranscript splits transcript text into chunks of at most maxChunkSize
// characters, preferring sentence boundaries and falling back to word
// boundaries for oversized sentences. A single word longer than the ceiling is
// emitted as its own chunk unchanged; the limit is advisory, not a hard
// truncation. Empty input yields no chunks.
func ChunkTranscript(text string, maxChunkSize int) []domain.TranscriptChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 {
		maxChunkSize = defaultChunkSize
	}

	var pieces []string
	var current strings.Builder

	add := func(piece string) {
		if current.Len() == 0 {
			current.WriteString(piece)
			return
		}
		if current.Len()+1+len(piece) > maxChunkSize {
			pieces = append(pieces, current.String())
			current.Reset()
			current.WriteString(piece)
			return
		}
		current.WriteByte(' ')
		current.WriteString(piece)
	}

	for _, sentence := range splitSentences(text) {
		if len(sentence) <= maxChunkSize {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			add(word)
		}
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}

	chunks := make([]domain.TranscriptChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = domain.TranscriptChunk{
			Text:  piece,
			Index: i,
			Total: len(pieces),
			Final: i == len(pieces)-1,
		}
	}
	return chunks
}

// splitSentences cuts text after terminal punctuation followed by whitespace,
// keeping the punctuation with its sentence and consuming the whitespace.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 >= len(text) || !isSpace(text[i+1]) {
			continue
		}
		sentences = append(sentences, text[start:i+1])
		i++
		for i < len(text) && isSpace(text[i]) {
			i++
		}
		start = i
		i--
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
