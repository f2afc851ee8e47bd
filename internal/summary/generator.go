// Package summary generates a SourceSummary for a crawled source by
// sampling its documents and forcing a summary_tool tool-use call, grounded
// on original_source's summary_manager.py (sample shape, 500-char content
// truncation, forced tool-choice) adapted to the teacher's
// llmclient.Client (itself adapted from internal/llm/anthropic/client.go).
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"kollektiv/internal/domain"
	"kollektiv/internal/llmclient"
)

const (
	defaultSampleSize = 5
	contentSampleLen  = 500
)

const summaryToolName = "summary_tool"

var summaryToolSpec = llmclient.ToolSpec{
	Name:        summaryToolName,
	Description: "Record a summary and keyword list for a set of crawled documents.",
	Schema: map[string]any{
		"properties": map[string]any{
			"summary":  map[string]any{"type": "string"},
			"keywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"summary", "keywords"},
	},
}

const systemPrompt = "You analyze web content and produce a concise summary and keyword list for a crawled data source."

// Generator computes SourceSummary records (§4.10).
type Generator struct {
	client     *llmclient.Client
	sampleSize int
	rng        *rand.Rand
}

func New(client *llmclient.Client) *Generator {
	return &Generator{client: client, sampleSize: defaultSampleSize}
}

// Generate implements §4.10: compute unique URLs/titles, sample up to N
// documents at random, submit a prompt with counts and truncated content
// samples, force summary_tool, and parse its input.
func (g *Generator) Generate(ctx context.Context, sourceID uuid.UUID, documents []domain.Document) (domain.SourceSummary, error) {
	if len(documents) == 0 {
		return domain.SourceSummary{}, fmt.Errorf("summary: no documents for source %s", sourceID)
	}

	urls := uniqueStrings(documents, func(d domain.Document) string { return d.Metadata.SourceURL })
	titles := uniqueStrings(documents, func(d domain.Document) string { return d.Metadata.Title })
	sample := g.selectSamples(documents)

	prompt := formatSummaryPrompt(sample, urls, titles)
	result, err := g.client.CallForcedTool(ctx, systemPrompt, prompt, summaryToolSpec)
	if err != nil {
		return domain.SourceSummary{}, fmt.Errorf("summary: generate: %w", err)
	}

	var parsed struct {
		Summary  string   `json:"summary"`
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(result.Input, &parsed); err != nil {
		return domain.SourceSummary{}, fmt.Errorf("summary: invalid tool output: %w", err)
	}
	if parsed.Summary == "" {
		return domain.SourceSummary{}, fmt.Errorf("summary: invalid tool output: missing summary")
	}

	return domain.SourceSummary{
		SummaryID: uuid.New(),
		SourceID:  sourceID,
		Summary:   parsed.Summary,
		Keywords:  parsed.Keywords,
	}, nil
}

// selectSamples picks up to sampleSize documents at random (§4.10).
func (g *Generator) selectSamples(documents []domain.Document) []domain.Document {
	n := g.sampleSize
	if n <= 0 {
		n = defaultSampleSize
	}
	if len(documents) <= n {
		return documents
	}
	var idx []int
	if g.rng != nil {
		idx = g.rng.Perm(len(documents))[:n]
	} else {
		idx = rand.Perm(len(documents))[:n]
	}
	out := make([]domain.Document, n)
	for i, j := range idx {
		out[i] = documents[j]
	}
	return out
}

func uniqueStrings(documents []domain.Document, field func(domain.Document) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range documents {
		v := field(d)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate(content string) string {
	if len(content) <= contentSampleLen {
		return content
	}
	return content[:contentSampleLen] + "..."
}

type sampleDoc struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func formatSummaryPrompt(sample []domain.Document, urls, titles []string) string {
	samples := make([]sampleDoc, len(sample))
	for i, d := range sample {
		samples[i] = sampleDoc{Title: d.Metadata.Title, URL: d.Metadata.SourceURL, Content: truncate(d.Content)}
	}
	urlsJSON, _ := json.MarshalIndent(urls, "", "  ")
	titlesJSON, _ := json.MarshalIndent(titles, "", "  ")
	samplesJSON, _ := json.MarshalIndent(samples, "", "  ")

	return fmt.Sprintf(`Analyze this web content and provide a summary and keywords.

Source URLs (%d total):
%s

Document Titles (%d total):
%s

Sample Content (%d documents):
%s

Generate:
1. A concise summary (100-150 words) describing the main topics and content type
2. 5-10 specific keywords that appear in the content`,
		len(urls), urlsJSON, len(titles), titlesJSON, len(samples), samplesJSON)
}
