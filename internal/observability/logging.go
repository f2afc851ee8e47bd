// Package observability carries the ambient concerns every other package
// leans on: the process-wide zerolog logger, trace-aware logger derivation,
// an otelhttp-instrumented HTTP client for outbound calls (crawler,
// embedding provider, reranker, LLM), and payload redaction for log lines
// that may contain provider credentials.
package observability

import (
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger for one Kollektiv
// process. Output is JSON on stdout; both the API and worker processes run
// under supervisors that collect stdout, so there is no file sink.
func InitLogger(service, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()

	zerolog.SetGlobalLevel(parseLevel(level))

	// Route the standard library logger (used by some dependencies) through
	// zerolog so nothing writes unstructured lines to stderr.
	stdlog.SetFlags(0)
	stdlog.SetOutput(log.Logger)
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
