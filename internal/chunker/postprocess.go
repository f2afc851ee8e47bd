package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"kollektiv/internal/domain"
)

// ensureH1 falls back to the document/page title, then "Untitled", for any
// chunk whose header path is missing an h1 (§4.7 step 5).
func ensureH1(headers domain.HeaderPath, pageTitle string) domain.HeaderPath {
	if strings.TrimSpace(headers.H1) != "" {
		return headers
	}
	title := strings.TrimSpace(pageTitle)
	if title == "" {
		title = "Untitled"
	}
	headers.H1 = title
	return headers
}

// addOverlap prepends each chunk (except the first) with the trailing
// overlap_tokens of its predecessor's text, where overlap is
// clamp(5% of predecessor tokens, MinOverlap, MaxOverlap), further clamped
// to the current chunk's remaining headroom under MaxTokens (§4.7 step 5).
func (c *Chunker) addOverlap(chunks []domain.Chunk) {
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		cur := &chunks[i]

		overlapTokens := int(float64(c.counter.Count(prev.Text)) * c.cfg.OverlapPercentage)
		if overlapTokens < c.cfg.MinOverlap {
			overlapTokens = c.cfg.MinOverlap
		}
		if overlapTokens > c.cfg.MaxOverlap {
			overlapTokens = c.cfg.MaxOverlap
		}

		available := c.cfg.MaxTokens - cur.TokenCount
		allowed := overlapTokens
		if allowed > available {
			allowed = available
		}
		if allowed <= 0 {
			continue
		}

		overlapText := c.counter.LastN(prev.Text, allowed)
		cur.Text = overlapText + cur.Text
		cur.TokenCount += c.counter.Count(overlapText)
	}
}

// combineHeadersAndText renders the Content field used for embedding: the
// header path followed by the chunk's (possibly overlap-prefixed) text
// (§4.7 step 5).
func combineHeadersAndText(chunks []domain.Chunk) {
	for i := range chunks {
		h := chunks[i].Headers
		chunks[i].Content = fmt.Sprintf(
			"Headers: {h1: %s, h2: %s, h3: %s}\n\nContent: %s",
			h.H1, h.H2, h.H3, chunks[i].Text,
		)
	}
}

// toDomainChunks converts post-adjustment raw chunks into final domain.Chunk
// records bound to the document/source, computing each one's token count.
func (c *Chunker) toDomainChunks(raw []rawChunk, doc domain.Document) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(raw))
	for _, r := range raw {
		out = append(out, domain.Chunk{
			ChunkID:    uuid.New(),
			SourceID:   doc.SourceID,
			DocumentID: doc.DocumentID,
			Headers:    r.Headers,
			Text:       r.Content,
			TokenCount: c.counter.Count(r.Content),
			PageTitle:  pageTitleOrUntitled(doc.Metadata.Title),
			PageURL:    doc.Metadata.SourceURL,
		})
	}
	return out
}

func pageTitleOrUntitled(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}
