package llmcap

import (
	"context"

	"refinery/pkg/artifact"
)

// StaticRetriever serves a fixed evidence slice. It backs file-sourced
// evidence on the CLI and doubles as a stand-in where no retrieval
// backend is configured.
type StaticRetriever struct {
	items []artifact.EvidenceItem
}

// NewStaticRetriever returns a retriever over the given items. A nil or
// empty slice is valid and yields no evidence.
func NewStaticRetriever(items []artifact.EvidenceItem) *StaticRetriever {
	return &StaticRetriever{items: items}
}

// Retrieve implements capability.ContextRetriever. The query is ignored;
// the fixed items are returned for every artifact.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string) ([]artifact.EvidenceItem, error) {
	out := make([]artifact.EvidenceItem, len(r.items))
	copy(out, r.items)
	return out, nil
}
