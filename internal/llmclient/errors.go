package llmclient

import "fmt"

// RetryableLLMError wraps a transient provider failure (429/5xx, connection
// error, timeout) per §7's error taxonomy. Retry policy lives with the
// caller; this type only classifies the failure as worth retrying.
type RetryableLLMError struct{ Err error }

func (e *RetryableLLMError) Error() string { return fmt.Sprintf("llm: retryable: %v", e.Err) }
func (e *RetryableLLMError) Unwrap() error { return e.Err }

// NonRetryableLLMError wraps a permanent provider failure (4xx other than
// 429, auth/permission error, malformed tool input, a stream that ended in
// error) per §7. No code in this module constructs it.
type NonRetryableLLMError struct{ Err error }

func (e *NonRetryableLLMError) Error() string { return fmt.Sprintf("llm: non-retryable: %v", e.Err) }
func (e *NonRetryableLLMError) Unwrap() error { return e.Err }
