// Package rag holds the domain entities and pure algorithms of the
// retrieval engine: the Chunk entity and the text chunker.
package rag

import "strings"

// Segment is one chunker output: the packed text plus its leading
// snippet.
type Segment struct {
	Text    string
	Snippet string
}

// ChunkText splits text into overlapping, paragraph-bounded segments.
//
// Paragraphs are packed greedily into a buffer until adding the next one
// would exceed maxChars (counting a 2-char join). A paragraph longer than
// maxChars is hard-cut; its remainder re-enters the paragraph queue as its
// own logical paragraph. After a chunk is emitted, if input remains and
// overlapRatio > 0, tail paragraphs of the chunk just emitted are
// reinserted at the front of the queue until the reinserted length
// reaches maxChars*overlapRatio, giving the next chunk overlap with the
// previous one. The first paragraph of a chunk is never reinserted, so
// every chunk consumes at least one paragraph and a single-paragraph
// chunk gets no overlap. Deterministic in its inputs; empty text yields
// nil.
func ChunkText(text string, maxChars int, overlapRatio float64, snippetChars int) []Segment {
	if maxChars <= 0 {
		maxChars = 1400
	}

	queue := splitParagraphs(text)
	if len(queue) == 0 {
		return nil
	}

	var segments []Segment

	for len(queue) > 0 {
		// Hard-cut an oversized leading paragraph before packing.
		if len(queue[0]) > maxChars {
			head := queue[0][:maxChars]
			tail := strings.TrimSpace(queue[0][maxChars:])
			rest := queue[1:]
			if tail != "" {
				queue = append([]string{tail}, rest...)
			} else {
				queue = rest
			}
			segments = append(segments, Segment{Text: head, Snippet: snippet(head, snippetChars)})
			continue
		}

		var bufParas []string
		bufLen := 0

		for len(queue) > 0 && len(queue[0]) <= maxChars {
			p := queue[0]
			join := 0
			if len(bufParas) > 0 {
				join = 2
			}
			if len(bufParas) > 0 && bufLen+join+len(p) > maxChars {
				break
			}
			bufParas = append(bufParas, p)
			bufLen += join + len(p)
			queue = queue[1:]
		}

		chunkText := strings.Join(bufParas, "\n\n")
		segments = append(segments, Segment{
			Text:    chunkText,
			Snippet: snippet(chunkText, snippetChars),
		})

		if len(queue) > 0 && overlapRatio > 0 {
			overlapTarget := int(float64(maxChars) * overlapRatio)
			var reinsert []string
			accumulated := 0
			for i := len(bufParas) - 1; i >= 1 && accumulated < overlapTarget; i-- {
				reinsert = append([]string{bufParas[i]}, reinsert...)
				accumulated += len(bufParas[i])
			}
			queue = append(reinsert, queue...)
		}
	}

	return segments
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	raw := strings.Split(normalized, "\n\n")

	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func snippet(text string, snippetChars int) string {
	if snippetChars <= 0 {
		snippetChars = 200
	}
	r := []rune(text)
	if len(r) <= snippetChars {
		return text
	}
	return string(r[:snippetChars]) + "..."
}
