package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
	"kollektiv/internal/tokencount"
)

func newTestChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	counter, err := tokencount.New(tokencount.TokenCacheConfig{})
	require.NoError(t, err)
	return New(cfg, counter)
}

func newDoc(content string) domain.Document {
	return domain.Document{
		DocumentID: uuid.New(),
		SourceID:   uuid.New(),
		Content:    content,
		Metadata:   domain.DocumentMetadata{Title: "T", SourceURL: "https://x.test"},
	}
}

func countFences(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			n++
		}
	}
	return n
}

// Scenario 1 (§8): a code fence is never split open — it appears in exactly
// one chunk with matching open/close fences.
func TestChunker_PreservesCodeFence(t *testing.T) {
	cfg := Config{MaxTokens: 100, SoftTokenLimit: 80, MinChunkSize: 10, OverlapPercentage: 0.05, MinOverlap: 5, MaxOverlap: 20}
	c := newTestChunker(t, cfg)

	content := "# T\ntext\n```py\nfor i in range(10_000): pass\n```\nmore"
	doc := newDoc(content)

	chunks, err := c.ProcessDocument(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	foundFenceChunk := false
	for _, ch := range chunks {
		fences := countFences(ch.Text)
		require.Zero(t, fences%2, "chunk must contain an even number of fences: %q", ch.Text)
		if strings.Contains(ch.Text, "for i in range") {
			foundFenceChunk = true
			require.Contains(t, ch.Text, "```py")
			require.Equal(t, 2, fences)
		}
	}
	require.True(t, foundFenceChunk, "expected one chunk to contain the code block")
}

// Scenario 2 (§8): a tiny trailing section under the same headers merges
// into a single chunk whose token count stays within 2*max_tokens.
func TestChunker_MergesTinyTrailingChunk(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestChunker(t, cfg)

	bigLine := strings.Repeat("word ", 600)
	smallLine := strings.Repeat("tiny ", 30)
	content := "# Header\n\n## Sub\n" + bigLine + "\n\n" + smallLine

	raw := c.splitIntoRawChunks(content, domain.HeaderPath{H1: "Header", H2: "Sub"})
	adjusted := c.adjustChunks(raw)

	require.Len(t, adjusted, 1)
	for _, ch := range adjusted {
		require.LessOrEqual(t, c.counter.Count(ch.Content), cfg.hardLimit())
	}
}

func TestChunker_SkipsEmptyDocument(t *testing.T) {
	c := newTestChunker(t, DefaultConfig())
	_, err := c.ProcessDocument(context.Background(), newDoc("   \n\n  "))
	require.Error(t, err)
}

func TestChunker_HeaderFallbackToTitle(t *testing.T) {
	c := newTestChunker(t, DefaultConfig())
	doc := newDoc("no headers here, just prose content that is long enough to form a chunk on its own.")
	doc.Metadata.Title = "Fallback Title"

	chunks, err := c.ProcessDocument(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.Equal(t, "Fallback Title", ch.Headers.H1)
	}
}

func TestChunker_ChunkOrderMatchesDocumentOrder(t *testing.T) {
	c := newTestChunker(t, Config{MaxTokens: 50, SoftTokenLimit: 20, MinChunkSize: 5, OverlapPercentage: 0.05, MinOverlap: 2, MaxOverlap: 10})
	content := "# H\nfirst paragraph words here padding padding padding padding\n\nsecond paragraph words here padding padding padding\n\nthird paragraph words here padding padding padding"
	doc := newDoc(content)

	chunks, err := c.ProcessDocument(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	firstIdx := indexOfSubstring(chunks, "first paragraph")
	secondIdx := indexOfSubstring(chunks, "second paragraph")
	thirdIdx := indexOfSubstring(chunks, "third paragraph")
	require.True(t, firstIdx <= secondIdx)
	require.True(t, secondIdx <= thirdIdx)
}

func indexOfSubstring(chunks []domain.Chunk, substr string) int {
	for i, ch := range chunks {
		if strings.Contains(ch.Text, substr) {
			return i
		}
	}
	return -1
}

func TestParseHeader(t *testing.T) {
	level, text, ok := parseHeader("## Getting Started")
	require.True(t, ok)
	require.Equal(t, 2, level)
	require.Equal(t, "Getting Started", text)

	_, _, ok = parseHeader("not a header")
	require.False(t, ok)
}

func TestMergeHeaders_PrefersNonEmpty(t *testing.T) {
	merged := mergeHeaders(domain.HeaderPath{H1: "A", H2: ""}, domain.HeaderPath{H1: "", H2: "B"})
	require.Equal(t, "A", merged.H1)
	require.Equal(t, "B", merged.H2)
}

func TestRemoveImages_StripsAllForms(t *testing.T) {
	content := `![alt](http://x.test/img.png)
<img src="x.png">
![base64](data:image/png;base64,AAAA)
text remains`
	out := removeImages(content)
	require.NotContains(t, out, "<img")
	require.NotContains(t, out, "![")
	require.Contains(t, out, "text remains")
}
