// Package llmassistant implements the "dumb translator" streaming assistant
// of spec.md §4.13: it forwards Anthropic's own streaming event union
// upward unmodified (grounded on the teacher's internal/llm/anthropic
// Client.ChatStream event-switch idiom), and executes the single rag_search
// tool plus deterministic multi-query expansion via forced tool-use.
package llmassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"kollektiv/internal/domain"
	"kollektiv/internal/llmclient"
	"kollektiv/internal/observability"
	"kollektiv/internal/retrieve"
)

// StreamEvent mirrors exactly one event from the Anthropic message stream.
// The assistant does not accumulate or interpret it beyond detecting a
// terminal stream error (§4.13's "dumb translator" contract).
type StreamEvent = llmclient.StreamEvent

// SummaryLister loads the source summaries the cached system prompt is
// built from (§4.13 "system prompt built from loaded source summaries").
type SummaryLister interface {
	ListAll(ctx context.Context) ([]domain.SourceSummary, error)
}

// RetrieverFactory builds (or returns a cached) Retriever scoped to one
// user's vector collection; rag_search needs this per the per-user
// collection model of §4.8/§4.9.
type RetrieverFactory func(ctx context.Context, userID string) (*retrieve.Retriever, error)

const ragSearchToolName = "rag_search"
const multiQueryToolName = "multi_query_tool"

var multiQueryToolSpec = llmclient.ToolSpec{
	Name:        multiQueryToolName,
	Description: "Generate query variants for retrieval-augmented search.",
	Schema: map[string]any{
		"properties": map[string]any{
			"queries": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"queries"},
	},
}

var ragSearchToolSpec = llmclient.ToolSpec{
	Name:        ragSearchToolName,
	Description: "Search the knowledge base for passages relevant to a query.",
	Schema: map[string]any{
		"properties": map[string]any{
			"rag_query": map[string]any{"type": "string"},
		},
		"required": []string{"rag_query"},
	},
}

// Assistant wires the Anthropic client, the retrieval pipeline, and the
// cached system prompt/tool catalogue described by §4.13.
type Assistant struct {
	client    *llmclient.Client
	summaries SummaryLister
	retriever RetrieverFactory

	promptOnce sync.Once
	prompt     string
	promptErr  error
}

func New(client *llmclient.Client, summaries SummaryLister, retriever RetrieverFactory) *Assistant {
	return &Assistant{client: client, summaries: summaries, retriever: retriever}
}

// systemPrompt builds and caches the system prompt from loaded source
// summaries on first use (§4.13).
func (a *Assistant) systemPrompt(ctx context.Context) (string, error) {
	a.promptOnce.Do(func() {
		summaries, err := a.summaries.ListAll(ctx)
		if err != nil {
			a.promptErr = fmt.Errorf("llmassistant: load source summaries: %w", err)
			return
		}
		var sb strings.Builder
		sb.WriteString("You are Kollektiv, a retrieval-augmented assistant. ")
		sb.WriteString("The following sources are available to you:\n\n")
		for _, s := range summaries {
			sb.WriteString("- ")
			sb.WriteString(s.Summary)
			if len(s.Keywords) > 0 {
				sb.WriteString(" (keywords: ")
				sb.WriteString(strings.Join(s.Keywords, ", "))
				sb.WriteString(")")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\nUse the rag_search tool to retrieve passages before answering questions about these sources.")
		a.prompt = sb.String()
	})
	return a.prompt, a.promptErr
}

// ToolCatalogue returns the assistant's fixed, cached tool catalogue: the
// single rag_search tool (§4.13).
func (a *Assistant) ToolCatalogue() []llmclient.ToolSpec {
	return []llmclient.ToolSpec{ragSearchToolSpec}
}

// StreamResponse runs stream_response(history) → asynchronous sequence of
// StreamEvent. The returned channel is closed when the stream ends (cleanly
// or with a terminal error, reported as the last event's Err).
func (a *Assistant) StreamResponse(ctx context.Context, history domain.ConversationHistory) (<-chan StreamEvent, error) {
	system, err := a.systemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	messages, err := toAnthropicMessages(history.Messages)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)
	go a.client.StreamChat(ctx, system, messages, a.ToolCatalogue(), out)
	return out, nil
}

// GenerateMultiQuery forces multi_query_tool and returns exactly n queries,
// truncating or padding (with the original query) as needed (§4.13).
func (a *Assistant) GenerateMultiQuery(ctx context.Context, query string, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	result, err := a.client.CallForcedTool(ctx, "", "Generate "+fmt.Sprint(n)+" search query variants for: "+query, multiQueryToolSpec)
	if err != nil {
		return nil, fmt.Errorf("llmassistant: generate_multi_query: %w", err)
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(result.Input, &parsed); err != nil {
		return nil, fmt.Errorf("llmassistant: generate_multi_query: parse tool input: %w", err)
	}
	if parsed.Queries == nil {
		return nil, fmt.Errorf("llmassistant: generate_multi_query: missing queries")
	}

	return padTruncate(parsed.Queries, query, n), nil
}

// padTruncate truncates queries to n, or pads with the original query until
// there are exactly n (§4.13 "truncate/pad to exactly n").
func padTruncate(queries []string, original string, n int) []string {
	if len(queries) > n {
		return append([]string(nil), queries[:n]...)
	}
	out := append([]string(nil), queries...)
	for len(out) < n {
		out = append(out, original)
	}
	return out
}

// HandleToolUse executes a tool-use block issued by the model and returns
// the resulting ToolResultBlock (§4.13). Only rag_search is recognised.
func (a *Assistant) HandleToolUse(ctx context.Context, block domain.ToolUseBlock, userID string) domain.ToolResultBlock {
	log := observability.LoggerWithTrace(ctx)
	if block.Name != ragSearchToolName {
		return domain.ToolResultBlock{ToolUseID: block.ID, Content: fmt.Sprintf("unknown tool %q", block.Name), IsError: true}
	}

	ragQuery, _ := block.Input["rag_query"].(string)
	if strings.TrimSpace(ragQuery) == "" {
		return domain.ToolResultBlock{ToolUseID: block.ID, Content: "rag_search: missing rag_query", IsError: true}
	}

	expanded, err := a.GenerateMultiQuery(ctx, ragQuery, 3)
	if err != nil {
		log.Error().Err(err).Msg("llmassistant: multi-query expansion failed")
		return domain.ToolResultBlock{ToolUseID: block.ID, Content: err.Error(), IsError: true}
	}
	combined := append([]string{ragQuery}, expanded...)

	retriever, err := a.retriever(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("llmassistant: retriever unavailable")
		return domain.ToolResultBlock{ToolUseID: block.ID, Content: err.Error(), IsError: true}
	}

	passages, err := retriever.Retrieve(ctx, ragQuery, combined, 3)
	if err != nil {
		log.Error().Err(err).Msg("llmassistant: retrieval failed")
		return domain.ToolResultBlock{ToolUseID: block.ID, Content: err.Error(), IsError: true}
	}

	content := formatRAGResults(passages)
	return domain.ToolResultBlock{ToolUseID: block.ID, Content: content}
}

func formatRAGResults(passages map[int]retrieve.Passage) string {
	if len(passages) == 0 {
		return "No relevant documents were found."
	}
	ordered := make([]retrieve.Passage, 0, len(passages))
	for _, p := range passages {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].RelevanceScore > ordered[j].RelevanceScore })
	var sb strings.Builder
	for _, p := range ordered {
		fmt.Fprintf(&sb, "Document's relevance score: %v:\nDocument text: %s:\n--------\n", p.RelevanceScore, p.Text)
	}
	return sb.String()
}
