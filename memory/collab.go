package memory

import (
	"context"

	"github.com/evermindhq/mnemo-go-sdk/core"
)

// Embedder converts text to vector embeddings. It is used at write time to
// store an embedding alongside a record and at query time to produce the
// query vector.
//
// Implementations: mock (deterministic, for tests), cache (ristretto
// read-through decorator), onnx (local MiniLM, behind the onnx build tag).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Extractor turns raw conversation turns into structured memory records.
// It may fail or return an empty batch; the ExtractionCoordinator treats
// both as "zero records extracted" and never lets either surface into the
// conversation path.
//
// The reference implementation (extractor/anthropic) sends a formatted
// transcript to a language model and parses its JSON reply.
type Extractor interface {
	Extract(ctx context.Context, ns Namespace, messages []core.Message) ([]*MemoryRecord, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, ns Namespace, messages []core.Message) ([]*MemoryRecord, error)

func (f ExtractorFunc) Extract(ctx context.Context, ns Namespace, messages []core.Message) ([]*MemoryRecord, error) {
	return f(ctx, ns, messages)
}
