package summary

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kollektiv/internal/domain"
)

func doc(title, url, content string) domain.Document {
	return domain.Document{
		DocumentID: uuid.New(),
		Content:    content,
		Metadata:   domain.DocumentMetadata{Title: title, SourceURL: url},
	}
}

func TestSelectSamples_ReturnsAllWhenUnderLimit(t *testing.T) {
	g := New(nil)
	docs := []domain.Document{doc("a", "u1", "c1"), doc("b", "u2", "c2")}
	require.Len(t, g.selectSamples(docs), 2)
}

func TestSelectSamples_CapsAtSampleSize(t *testing.T) {
	g := New(nil)
	var docs []domain.Document
	for i := 0; i < 20; i++ {
		docs = append(docs, doc("t", "u", "c"))
	}
	require.Len(t, g.selectSamples(docs), defaultSampleSize)
}

func TestUniqueStrings_DedupsAndSkipsEmpty(t *testing.T) {
	docs := []domain.Document{
		doc("A", "http://x.test", "c"),
		doc("A", "http://x.test", "c"),
		doc("", "", "c"),
		doc("B", "http://y.test", "c"),
	}
	titles := uniqueStrings(docs, func(d domain.Document) string { return d.Metadata.Title })
	require.ElementsMatch(t, []string{"A", "B"}, titles)
}

func TestTruncate_LeavesShortContentAlone(t *testing.T) {
	require.Equal(t, "short", truncate("short"))
}

func TestTruncate_CutsLongContentAt500(t *testing.T) {
	long := strings.Repeat("x", 600)
	out := truncate(long)
	require.True(t, strings.HasSuffix(out, "..."))
	require.Equal(t, contentSampleLen+len("..."), len(out))
}

func TestFormatSummaryPrompt_IncludesCounts(t *testing.T) {
	docs := []domain.Document{doc("T1", "http://x.test", "content")}
	prompt := formatSummaryPrompt(docs, []string{"http://x.test"}, []string{"T1"})
	require.Contains(t, prompt, "Source URLs (1 total)")
	require.Contains(t, prompt, "Document Titles (1 total)")
	require.Contains(t, prompt, "Sample Content (1 documents)")
	require.Contains(t, prompt, "T1")
}
