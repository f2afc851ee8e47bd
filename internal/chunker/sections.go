package chunker

import (
	"strings"

	"kollektiv/internal/domain"
)

// section is one header-scoped run of content identified in the
// preprocessed document (§4.7 step 2).
type section struct {
	Headers domain.HeaderPath
	Content string
}

// isFenceLine reports whether the trimmed line opens or closes a code
// fence, and returns the 3-character fence marker ("```" or "~~~").
func isFenceLine(trimmed string) (fence string, ok bool) {
	if strings.HasPrefix(trimmed, "```") {
		return "```", true
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return "~~~", true
	}
	return "", false
}

// parseHeader reports whether trimmed is an ATX header (1-3 leading '#'
// characters not inside a code block) and returns its level and cleaned
// text.
func parseHeader(trimmed string) (level int, text string, ok bool) {
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' && n < 3 {
		n++
	}
	if n == 0 {
		return 0, "", false
	}
	// a 4th+ consecutive '#' still yields a level-3 header whose text
	// retains the extra hashes, matching the original regex's greedy
	// {1,3} group followed by a bare \s*(.*) capture.
	rest := trimmed[n:]
	rest = strings.TrimPrefix(rest, " ")
	cleaned := cleanHeaderText(rewriteInlineCode(rest))
	return n, cleaned, true
}

// identifySections walks content tracking code-block state, splitting on
// ATX headers encountered outside code blocks. Header parents carry
// forward; a header at level L resets every level deeper than L (§4.7
// step 2). An unclosed trailing code block is accepted into the final
// section; the caller is responsible for logging the quality warning.
func identifySections(content string) (sections []section, hadUnclosedFence bool) {
	lines := strings.Split(content, "\n")
	headers := domain.HeaderPath{}
	var acc strings.Builder
	inCode := false
	fence := ""

	flush := func() {
		text := strings.TrimSpace(acc.String())
		if text != "" {
			sections = append(sections, section{Headers: headers, Content: text})
		}
		acc.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if f, ok := isFenceLine(trimmed); ok {
			if !inCode {
				inCode = true
				fence = f
			} else if trimmed == fence {
				inCode = false
			}
			acc.WriteString(line)
			acc.WriteByte('\n')
			continue
		}
		if inCode {
			acc.WriteString(line)
			acc.WriteByte('\n')
			continue
		}

		if level, text, ok := parseHeader(trimmed); ok {
			flush()
			switch level {
			case 1:
				headers = domain.HeaderPath{H1: text}
			case 2:
				headers = domain.HeaderPath{H1: headers.H1, H2: text}
			case 3:
				headers = domain.HeaderPath{H1: headers.H1, H2: headers.H2, H3: text}
			}
			continue
		}

		acc.WriteString(line)
		acc.WriteByte('\n')
	}
	flush()
	return sections, inCode
}
