// Package llmclient wraps the Anthropic SDK the way the teacher's
// internal/llm/anthropic/client.go does (structured logging around every
// call, a thin Client type built from config.AnthropicConfig), narrowed to
// the two call shapes Kollektiv needs: a forced single tool-use call (C10
// summary generation, C13 query generation) and a streaming chat call with
// tool-use support (C13 assistant loop). The teacher's generic multi-provider
// llm.Message abstraction is dropped since this spec is Anthropic-only; see
// DESIGN.md.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"kollektiv/internal/config"
	"kollektiv/internal/observability"
)

const defaultMaxTokens int64 = 1024

type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

func New(cfg config.AnthropicConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{sdk: anthropic.NewClient(opts...), model: model, maxTokens: maxTokens}
}

// ToolSpec describes one tool Anthropic can be forced or allowed to call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any // JSON schema: "properties"/"required" keys used directly
}

func (c *Client) buildTools(tools []ToolSpec) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("llmclient: tool name required")
		}
		schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		extras := map[string]any{}
		for k, v := range t.Schema {
			extras[k] = v
		}
		if props, ok := extras["properties"]; ok {
			schema.Properties = props
			delete(extras, "properties")
		}
		if req, ok := extras["required"]; ok {
			delete(extras, "required")
			switch v := req.(type) {
			case []string:
				schema.Required = v
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		delete(extras, "type")
		if len(extras) > 0 {
			schema.ExtraFields = extras
		}
		param := anthropic.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			param.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

// ForcedToolResult is the decoded input of a tool-use block the model was
// required to emit (C10 §4.10, C13 §4.13 query-generation path).
type ForcedToolResult struct {
	ToolName string
	Input    json.RawMessage
}

// CallForcedTool sends a single-turn message forcing the model to call the
// named tool and returns its input. Returns a non-retryable error if the
// model responds without the expected tool-use block (§4.10 failure
// semantics).
func (c *Client) CallForcedTool(ctx context.Context, system, userPrompt string, tool ToolSpec) (ForcedToolResult, error) {
	toolDefs, err := c.buildTools([]ToolSpec{tool})
	if err != nil {
		return ForcedToolResult{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt))},
		Tools:     toolDefs,
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
		},
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("tool", tool.Name).Dur("duration", dur).Msg("llmclient: forced tool call failed")
		return ForcedToolResult{}, fmt.Errorf("llmclient: forced tool call: %w", err)
	}

	for _, block := range resp.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok && tu.Name == tool.Name {
			log.Debug().Str("tool", tool.Name).Dur("duration", dur).Msg("llmclient: forced tool call ok")
			return ForcedToolResult{ToolName: tu.Name, Input: tu.Input}, nil
		}
	}
	return ForcedToolResult{}, &NoToolUseError{Tool: tool.Name}
}

// NoToolUseError signals the model responded without the forced tool-use
// block; callers must treat this as non-retryable (§4.10).
type NoToolUseError struct{ Tool string }

func (e *NoToolUseError) Error() string {
	return fmt.Sprintf("llmclient: model did not call required tool %q", e.Tool)
}
