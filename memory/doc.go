// Package memory implements a long-term memory engine for conversational
// agents: it stores discrete facts extracted from conversations, retrieves
// the most relevant ones for a query, and decays their relevance over time
// unless reinforced by access.
//
// Architecture:
//   - MetadataStore / VectorStore: pluggable backends for record attributes
//     and embeddings, keyed by the same record id so either side can be
//     scaled or swapped independently
//   - StoreCoordinator: dual writes, hybrid search with effective-score
//     re-ranking, decay sweeps, decayed-record cleanup
//   - ExtractionCoordinator: per-session turn buffering and the trigger
//     policy deciding when buffered turns are flushed to the Extractor
//   - LongTermMemory: the facade an agent runtime consumes
//
// Multi-tenancy is namespace-based: every record belongs to a hierarchical
// Namespace and all queries are scoped by its canonical path, so tenants
// sharing one process can never observe each other's records.
//
// Ranking combines vector similarity with per-record state:
//
//	score = similarity × importance × decayFactor × (1 + 0.1·ln(1+accessCount))
//
// where the decay factor follows an exponential forgetting curve over days
// since last access. Recall bumps the access count, so memories that keep
// proving useful resist forgetting.
//
// Store implementations live in memory/store/..., embedders in
// memory/embedder/..., and the reference language-model extractor in
// memory/extractor/anthropic.
package memory
