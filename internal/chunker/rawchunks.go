package chunker

import (
	"regexp"
	"strings"

	"kollektiv/internal/domain"
)

// rawChunk is a chunk before the merge/split adjustment pass.
type rawChunk struct {
	Headers domain.HeaderPath
	Content string
}

// splitIntoRawChunks performs §4.7 step 3: accumulate lines up to the soft
// token limit, keep code fences atomic (splitting only when a fenced block
// alone exceeds 2*max_tokens), and forcibly split any single non-code line
// that alone exceeds 2*max_tokens.
func (c *Chunker) splitIntoRawChunks(content string, headers domain.HeaderPath) []rawChunk {
	var chunks []rawChunk
	current := rawChunk{Headers: headers}
	lines := strings.Split(content, "\n")

	inCode := false
	fence := ""
	var codeBuf strings.Builder

	flushCurrent := func() {
		if strings.TrimSpace(current.Content) != "" {
			chunks = append(chunks, current)
		}
		current = rawChunk{Headers: headers}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimRight(line, " \t\r")
		stripped := strings.TrimSpace(trimmed)

		if f, ok := isFenceLine(stripped); ok {
			if !inCode {
				inCode = true
				fence = f
				codeBuf.Reset()
				codeBuf.WriteString(line)
				codeBuf.WriteByte('\n')
				i++
				continue
			}
			if stripped == fence {
				codeBuf.WriteString(line)
				codeBuf.WriteByte('\n')
				inCode = false
				c.placeCodeBlock(&chunks, &current, headers, codeBuf.String(), fence)
				codeBuf.Reset()
				i++
				continue
			}
			codeBuf.WriteString(line)
			codeBuf.WriteByte('\n')
			i++
			continue
		}
		if inCode {
			codeBuf.WriteString(line)
			codeBuf.WriteByte('\n')
			i++
			continue
		}

		rewritten := rewriteInlineCode(line)
		candidate := current.Content + rewritten + "\n"
		if c.counter.Count(candidate) <= c.cfg.SoftTokenLimit {
			current.Content = candidate
			i++
			continue
		}

		flushCurrent()
		lineTokens := c.counter.Count(rewritten + "\n")
		if lineTokens > c.cfg.hardLimit() {
			for _, piece := range c.splitLongLine(rewritten) {
				chunks = append(chunks, rawChunk{Headers: headers, Content: piece + "\n"})
			}
			current = rawChunk{Headers: headers}
		} else {
			current = rawChunk{Headers: headers, Content: rewritten + "\n"}
		}
		i++
	}

	// Unclosed code block: append whatever was accumulated and keep going
	// (§4.7 failure semantics — logged as a quality warning by the caller).
	if inCode {
		current.Content += codeBuf.String()
	}
	flushCurrent()
	return chunks
}

// placeCodeBlock appends a just-closed fenced block to the in-progress
// chunk, splitting it first if the whole block alone exceeds 2*max_tokens.
func (c *Chunker) placeCodeBlock(chunks *[]rawChunk, current *rawChunk, headers domain.HeaderPath, block, fence string) {
	blockTokens := c.counter.Count(block)
	if blockTokens > c.cfg.hardLimit() {
		for _, piece := range c.splitCodeBlock(block, fence) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			wrapped := fence + "\n" + piece + "\n" + fence + "\n"
			candidate := current.Content + wrapped
			if c.counter.Count(candidate) <= c.cfg.hardLimit() {
				current.Content = candidate
			} else {
				if strings.TrimSpace(current.Content) != "" {
					*chunks = append(*chunks, *current)
				}
				*current = rawChunk{Headers: headers, Content: wrapped}
			}
		}
		return
	}
	candidate := current.Content + block
	if c.counter.Count(candidate) <= c.cfg.hardLimit() {
		current.Content = candidate
		return
	}
	if strings.TrimSpace(current.Content) != "" {
		*chunks = append(*chunks, *current)
	}
	*current = rawChunk{Headers: headers, Content: block}
}

// logicalSplitPoint matches lines that look like a logical boundary inside
// an oversized code block: blank, a comment, or the start/end of a
// definition (§4.7 step 3).
var logicalSplitPoint = regexp.MustCompile(`^\s*(def |class |\}|//|/\*|\*/|#)`)

// splitCodeBlock splits an oversized fenced block at the nearest logical
// boundary walking backward from each 2*max_tokens threshold crossing. The
// block's own fence lines are stripped first; every returned piece is bare
// code for the caller to re-wrap in matching fences.
func (c *Chunker) splitCodeBlock(block, fence string) []string {
	inner := strings.TrimSpace(block)
	lines := strings.Split(inner, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), fence) {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == fence {
		lines = lines[:len(lines)-1]
	}
	var out []string
	var cur []string
	for _, line := range lines {
		cur = append(cur, line)
		wrapped := fence + "\n" + strings.Join(cur, "\n") + "\n" + fence + "\n"
		if c.counter.Count(wrapped) >= c.cfg.hardLimit() {
			splitAt := len(cur) - 1
			for j := len(cur) - 1; j >= 0; j-- {
				t := cur[j]
				if strings.TrimSpace(t) == "" || logicalSplitPoint.MatchString(t) {
					splitAt = j
					break
				}
			}
			out = append(out, strings.TrimSpace(strings.Join(cur[:splitAt+1], "\n")))
			cur = append([]string{}, cur[splitAt+1:]...)
		}
	}
	if len(cur) > 0 {
		if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitLongLine force-splits a single non-code line exceeding 2*max_tokens
// by raw token count, decoding each 2*max_tokens-wide slice back to text
// (§4.7 step 3).
func (c *Chunker) splitLongLine(line string) []string {
	ids := c.counter.Encode(line)
	width := c.cfg.hardLimit()
	var out []string
	for i := 0; i < len(ids); i += width {
		end := i + width
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, c.counter.Decode(ids[i:end]))
	}
	return out
}
