package memory

import "context"

// MetadataStore persists record attributes and supports namespace-scoped
// lookup. Implementations: inmem (reference), sqlite (embedded persistent),
// redis (shared/distributed).
//
// All namespaces share one store; isolation is enforced entirely by the
// namespace path scoping of queries, never by separate physical stores.
// Delete and RecordAccess on unknown ids are no-ops.
type MetadataStore interface {
	// Save persists a record, overwriting any existing record with the same id.
	Save(ctx context.Context, record *MemoryRecord) error

	// SaveAll persists a batch of records.
	SaveAll(ctx context.Context, records []*MemoryRecord) error

	// FindByID returns the record with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*MemoryRecord, error)

	// FindByNamespace returns every record whose namespace path equals ns,
	// additionally narrowed by the optional filter.
	FindByNamespace(ctx context.Context, ns Namespace, filter *SearchFilter) ([]*MemoryRecord, error)

	// FindAll returns every record irrespective of namespace.
	FindAll(ctx context.Context) ([]*MemoryRecord, error)

	// FindDecayed returns records in ns with decay factor strictly below threshold.
	FindDecayed(ctx context.Context, ns Namespace, threshold float64) ([]*MemoryRecord, error)

	// FindAllDecayed returns records in any namespace with decay factor
	// strictly below threshold.
	FindAllDecayed(ctx context.Context, threshold float64) ([]*MemoryRecord, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error

	// DeleteByNamespace removes every record whose namespace path equals ns
	// and returns the count removed.
	DeleteByNamespace(ctx context.Context, ns Namespace) (int, error)

	// RecordAccess increments the access count and sets the last-accessed
	// timestamp of the record.
	RecordAccess(ctx context.Context, id string) error

	// UpdateDecayFactor overwrites the record's decay factor.
	UpdateDecayFactor(ctx context.Context, id string, factor float64) error

	// Count returns the number of records in ns.
	Count(ctx context.Context, ns Namespace) (int, error)

	// CountByType returns per-type record counts in ns.
	CountByType(ctx context.Context, ns Namespace) (map[MemoryType]int, error)

	// Close releases backend resources.
	Close() error
}

// SimilarityMatch is one ranked result from a vector similarity search.
type SimilarityMatch struct {
	ID         string
	Similarity float64
}

// VectorStore persists embeddings keyed by record id and answers similarity
// queries restricted to a candidate id set. Implementations: inmem
// (reference), chromem (embedded vector database).
type VectorStore interface {
	// Save stores the embedding for a record id, overwriting any previous one.
	Save(ctx context.Context, id string, embedding []float32) error

	// SaveAll stores a batch; ids and embeddings must align by index.
	SaveAll(ctx context.Context, ids []string, embeddings [][]float32) error

	// Search returns up to topK candidate ids ranked by descending
	// similarity to query. Only ids in candidates are considered; candidate
	// ids with no stored embedding are skipped.
	Search(ctx context.Context, query []float32, topK int, candidates []string) ([]SimilarityMatch, error)

	// Delete removes the embedding for id. Unknown ids are a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes the embeddings for all given ids.
	DeleteAll(ctx context.Context, ids []string) error

	// Close releases backend resources.
	Close() error
}
