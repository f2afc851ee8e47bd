// Package tokencount provides the single, process-wide token counter used
// by the chunker and the conversation manager. Both must agree on what a "token" is, so there is exactly one BPE encoding
// loaded per process.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding name for Claude/GPT-4 class models. The original Python project
// used this encoding as a fast local approximation for chunk sizing; we do
// the same rather than calling a remote count_tokens endpoint per line.
const encodingName = "cl100k_base"

// Counter counts tokens against a fixed BPE encoding, with an LRU cache in
// front of it since chunking re-measures overlapping substrings repeatedly.
type Counter struct {
	enc   *tiktoken.Tiktoken
	cache *TokenCache
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
	defaultErr     error
)

// Default returns the process-wide Counter, initializing it on first use.
func Default() (*Counter, error) {
	defaultOnce.Do(func() {
		defaultCounter, defaultErr = New(TokenCacheConfig{})
	})
	return defaultCounter, defaultErr
}

// New builds a Counter with its own cache. Most callers should use Default;
// New exists for tests that want an isolated cache.
func New(cacheCfg TokenCacheConfig) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Counter{enc: enc, cache: NewTokenCache(cacheCfg)}, nil
}

// Count returns the number of tokens in s under the fixed encoding.
func (c *Counter) Count(s string) int {
	if s == "" {
		return 0
	}
	if n, ok := c.cache.Get(s); ok {
		return n
	}
	n := len(c.enc.Encode(s, nil, nil))
	c.cache.Set(s, n)
	return n
}

// Encode returns the raw token ids for s. Used by the chunker to slice text
// by a token budget without re-decoding substrings token-by-token.
func (c *Counter) Encode(s string) []int {
	return c.enc.Encode(s, nil, nil)
}

// Decode renders token ids back to text.
func (c *Counter) Decode(ids []int) string {
	return c.enc.Decode(ids)
}

// LastN returns the text corresponding to the final n tokens of s, used to
// build the leading-overlap window between adjacent chunks. If s has fewer
// than n tokens, the whole string is returned.
func (c *Counter) LastN(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	ids := c.Encode(s)
	if len(ids) <= n {
		return s
	}
	return c.Decode(ids[len(ids)-n:])
}

// EstimateTokens is a cheap chars/4 heuristic fallback for call sites that
// cannot afford a BPE pass (e.g. sizing a Redis pipeline before encoding).
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len([]rune(s))/4 + 1
}
