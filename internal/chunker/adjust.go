package chunker

import (
	"strings"

	"kollektiv/internal/domain"
)

// adjustChunks performs §4.7 step 4: merge any below-minimum chunk with its
// successor (else predecessor) when the combination stays within
// 2*max_tokens, then split any chunk still above 2*max_tokens at line
// boundaries.
func (c *Chunker) adjustChunks(chunks []rawChunk) []rawChunk {
	merged := c.mergeSmallChunks(chunks)

	final := make([]rawChunk, 0, len(merged))
	for _, ch := range merged {
		if c.counter.Count(ch.Content) > c.cfg.hardLimit() {
			final = append(final, c.splitLargeChunk(ch)...)
		} else {
			final = append(final, ch)
		}
	}
	return final
}

func (c *Chunker) mergeSmallChunks(chunks []rawChunk) []rawChunk {
	work := append([]rawChunk(nil), chunks...)
	var out []rawChunk

	i := 0
	for i < len(work) {
		cur := work[i]
		tokens := c.counter.Count(cur.Content)
		if tokens >= c.cfg.MinChunkSize {
			out = append(out, cur)
			i++
			continue
		}

		if i+1 < len(work) {
			combined := cur.Content + work[i+1].Content
			if c.counter.Count(combined) <= c.cfg.hardLimit() {
				work[i+1] = rawChunk{
					Headers: mergeHeaders(cur.Headers, work[i+1].Headers),
					Content: combined,
				}
				i++
				continue
			}
		}
		if len(out) > 0 {
			prev := out[len(out)-1]
			combined := prev.Content + cur.Content
			if c.counter.Count(combined) <= c.cfg.hardLimit() {
				out[len(out)-1] = rawChunk{
					Headers: mergeHeaders(prev.Headers, cur.Headers),
					Content: combined,
				}
				i++
				continue
			}
		}
		out = append(out, cur)
		i++
	}
	return out
}

// splitLargeChunk splits an oversized merged chunk at line boundaries,
// keeping each piece at or under 2*max_tokens (§4.7 step 4).
func (c *Chunker) splitLargeChunk(chunk rawChunk) []rawChunk {
	lines := strings.Split(chunk.Content, "\n")
	var out []rawChunk
	var cur strings.Builder
	for _, line := range lines {
		candidate := cur.String() + line + "\n"
		if c.counter.Count(candidate) <= c.cfg.hardLimit() {
			cur.Reset()
			cur.WriteString(candidate)
			continue
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, rawChunk{Headers: chunk.Headers, Content: s})
		}
		cur.Reset()
		cur.WriteString(line + "\n")
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, rawChunk{Headers: chunk.Headers, Content: s})
	}
	return out
}

// mergeHeaders unions two header paths level by level, preferring the first
// non-empty value per level (§4.7 step 4).
func mergeHeaders(a, b domain.HeaderPath) domain.HeaderPath {
	pick := func(x, y string) string {
		if strings.TrimSpace(x) != "" {
			return x
		}
		return y
	}
	return domain.HeaderPath{
		H1: pick(a.H1, b.H1),
		H2: pick(a.H2, b.H2),
		H3: pick(a.H3, b.H3),
	}
}
