package chunker

import (
	"context"
	"strings"

	"kollektiv/internal/domain"
	"kollektiv/internal/observability"
	"kollektiv/internal/tokencount"
)

// Chunker holds the fixed configuration and the shared process-wide
// tokenizer (§4.7, §9's "Global tokenizer → process-wide pure service").
type Chunker struct {
	cfg     Config
	counter *tokencount.Counter
}

func New(cfg Config, counter *tokencount.Counter) *Chunker {
	return &Chunker{cfg: cfg, counter: counter}
}

// ProcessDocuments runs the full pipeline over every document, skipping
// blank ones with a logged warning and continuing with the rest (§4.7
// failure semantics).
func (c *Chunker) ProcessDocuments(ctx context.Context, docs []domain.Document) []domain.Chunk {
	var all []domain.Chunk
	for _, doc := range docs {
		chunks, err := c.ProcessDocument(ctx, doc)
		if err != nil {
			observability.LoggerWithTrace(ctx).Warn().
				Err(err).Str("document_id", doc.DocumentID.String()).Msg("chunker: skipping document")
			continue
		}
		all = append(all, chunks...)
	}
	return all
}

// ProcessDocument runs the full five-step pipeline (§4.7) on one document:
// preprocess, identify sections, raw-chunk each section, adjust across the
// document, then post-process (header fallback, overlap, content combine).
// An empty-after-preprocessing document returns an error so the caller can
// log-and-skip per §4.7's failure semantics.
func (c *Chunker) ProcessDocument(ctx context.Context, doc domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, errEmptyContent{documentID: doc.DocumentID.String()}
	}

	cleaned := Preprocess(doc.Content)
	if strings.TrimSpace(cleaned) == "" {
		return nil, errEmptyContent{documentID: doc.DocumentID.String()}
	}

	sections, hadUnclosedFence := identifySections(cleaned)
	if hadUnclosedFence {
		observability.LoggerWithTrace(ctx).Warn().
			Str("document_id", doc.DocumentID.String()).
			Msg("chunker: unclosed code block, quality may be degraded")
	}

	var raw []rawChunk
	for _, s := range sections {
		raw = append(raw, c.splitIntoRawChunks(s.Content, s.Headers)...)
	}
	raw = c.adjustChunks(raw)

	domainChunks := c.toDomainChunks(raw, doc)

	pageTitle := pageTitleOrUntitled(doc.Metadata.Title)
	for i := range domainChunks {
		domainChunks[i].Headers = ensureH1(domainChunks[i].Headers, pageTitle)
	}
	c.addOverlap(domainChunks)
	combineHeadersAndText(domainChunks)

	return domainChunks, nil
}

type errEmptyContent struct{ documentID string }

func (e errEmptyContent) Error() string { return "chunker: empty content in document " + e.documentID }
