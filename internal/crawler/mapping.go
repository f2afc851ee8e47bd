package crawler

import (
	"github.com/google/uuid"

	"kollektiv/internal/domain"
)

// ToDocuments maps crawler result pages to domain Documents. A page whose
// markdown field is null or non-string cannot become a Document at all, so
// it is dropped here; pages with a present-but-blank markdown string pass
// through and are handled by the Chunker's empty-content skip (§4.7).
func ToDocuments(sourceID uuid.UUID, pages []ResultPage) []domain.Document {
	out := make([]domain.Document, 0, len(pages))
	for _, p := range pages {
		md, ok := p.Markdown.(string)
		if !ok {
			continue
		}
		out = append(out, domain.Document{
			DocumentID: uuid.New(),
			SourceID:   sourceID,
			Content:    md,
			Metadata:   metadataFrom(p.Metadata),
		})
	}
	return out
}

func metadataFrom(m map[string]any) domain.DocumentMetadata {
	return domain.DocumentMetadata{
		Title:       stringField(m, "title"),
		Description: stringField(m, "description"),
		SourceURL:   stringField(m, "sourceURL"),
		OGURL:       stringField(m, "og:url"),
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
