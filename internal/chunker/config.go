// Package chunker is the header-aware markdown chunker (C7): it splits a
// Document's markdown into token-bounded Chunks that preserve code fences,
// header structure, and document order. Grounded line-for-line on
// original_source's src/core/content/chunker.py (MarkdownChunker), the
// hardest algorithmic subcomponent in the spec — the teacher's
// internal/rag/chunker package is a much simpler fixed/markdown/code
// splitter and is adapted only for interface shape (a Config struct, a
// constructor taking the shared tokenizer), not for the algorithm itself.
package chunker

// Config holds the chunker's fixed-default parameters (§4.7).
type Config struct {
	MaxTokens         int     // hard upper bound per chunk (may be exceeded only for atomic code blocks)
	SoftTokenLimit    int     // preferred ceiling during line-by-line accumulation
	MinChunkSize      int     // below this a chunk is a merge candidate
	OverlapPercentage float64 // fraction of predecessor tokens used as leading overlap
	MinOverlap        int
	MaxOverlap        int
}

// DefaultConfig returns the spec's fixed defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         512,
		SoftTokenLimit:    400,
		MinChunkSize:      100,
		OverlapPercentage: 0.05,
		MinOverlap:        50,
		MaxOverlap:        100,
	}
}

func (c Config) hardLimit() int { return 2 * c.MaxTokens }
