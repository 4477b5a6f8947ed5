package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/evermindhq/mnemo-go-sdk/core"
)

// LongTermMemory is the facade consumed by an agent runtime: session
// lifecycle, typed recall, pre-seeding, and context formatting. It is a
// thin layer over the store and extraction coordinators.
type LongTermMemory struct {
	cfg        *Config
	stores     *StoreCoordinator
	extraction *ExtractionCoordinator
	embedder   Embedder
	template   *NamespaceTemplate
	log        *zap.Logger

	ns        Namespace
	sessionID string
}

// Option configures LongTermMemory.
type Option func(*LongTermMemory)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(m *LongTermMemory) {
		if cfg != nil {
			m.cfg = cfg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *LongTermMemory) {
		if log != nil {
			m.log = log
		}
	}
}

// WithNamespaceTemplate sets the template used by StartSession to resolve
// runtime variables into the session namespace.
func WithNamespaceTemplate(t *NamespaceTemplate) Option {
	return func(m *LongTermMemory) {
		m.template = t
	}
}

// New assembles the memory system over the given backends and
// collaborators.
func New(meta MetadataStore, vectors VectorStore, embedder Embedder, extractor Extractor, opts ...Option) *LongTermMemory {
	m := &LongTermMemory{
		cfg:      DefaultConfig(),
		embedder: embedder,
		log:      zap.NewNop(),
		ns:       GlobalNamespace,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stores = NewStoreCoordinator(meta, vectors, m.cfg, WithCoordinatorLogger(m.log))
	m.extraction = NewExtractionCoordinator(extractor, embedder, m.stores, m.cfg, m.log)
	return m
}

// Stores exposes the store coordinator for out-of-band jobs
// (decay sweeps, cleanup, tenant teardown).
func (m *LongTermMemory) Stores() *StoreCoordinator {
	return m.stores
}

// StartSession resolves the configured namespace template against vars and
// begins buffering turns for the session. Without a template the global
// namespace is used.
func (m *LongTermMemory) StartSession(vars map[string]string, sessionID string) error {
	ns := GlobalNamespace
	if m.template != nil {
		resolved, err := m.template.Resolve(vars)
		if err != nil {
			return err
		}
		ns = resolved
	}
	return m.StartSessionIn(ns, sessionID)
}

// StartSessionIn begins buffering turns for the session in an explicit
// namespace.
func (m *LongTermMemory) StartSessionIn(ns Namespace, sessionID string) error {
	if ns.IsZero() {
		ns = GlobalNamespace
	}
	m.ns = ns
	m.sessionID = sessionID
	m.extraction.InitSession(ns, sessionID)
	return nil
}

// OnMessage feeds one conversation turn into the extraction buffer.
func (m *LongTermMemory) OnMessage(ctx context.Context, msg core.Message) error {
	return m.extraction.OnMessage(ctx, msg)
}

// EndSession flushes the remaining buffer (per config) and closes the
// session.
func (m *LongTermMemory) EndSession(ctx context.Context) error {
	return m.extraction.OnSessionEnd(ctx)
}

// Recall embeds the query and returns up to topK records from the current
// session namespace, optionally restricted to the given types. An embedding
// failure degrades to no results rather than an error.
func (m *LongTermMemory) Recall(ctx context.Context, query string, topK int, types ...MemoryType) ([]SearchResult, error) {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.log.Warn("query embedding failed, recalling nothing", zap.Error(err))
		return nil, nil
	}
	return m.stores.Search(ctx, m.ns, embedding, topK, WithTypes(types...))
}

// Remember pre-seeds a memory directly, bypassing extraction.
func (m *LongTermMemory) Remember(ctx context.Context, content string, t MemoryType) (*MemoryRecord, error) {
	record := NewMemoryRecord(m.ns, content, t)
	embedding, err := m.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if err := m.stores.Save(ctx, record, embedding); err != nil {
		return nil, err
	}
	return record, nil
}

// Forget removes the whole current-session namespace and returns the count
// removed.
func (m *LongTermMemory) Forget(ctx context.Context) (int, error) {
	return m.stores.DeleteByNamespace(ctx, m.ns)
}

// FormatAsContext renders recalled results as a numbered, type-tagged block
// ready for prompt injection. Empty input renders an empty string.
func (m *LongTermMemory) FormatAsContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== RELEVANT MEMORIES ===\n")
	for i, res := range results {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, res.Record.Type, res.Record.Content)
	}
	return b.String()
}

// HasMemories reports whether the current namespace holds any records.
func (m *LongTermMemory) HasMemories(ctx context.Context) (bool, error) {
	n, err := m.stores.Count(ctx, m.ns)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryCount returns the number of records in the current namespace.
func (m *LongTermMemory) MemoryCount(ctx context.Context) (int, error) {
	return m.stores.Count(ctx, m.ns)
}

// WaitForExtraction blocks until in-flight extraction finishes; it returns
// immediately when none is running.
func (m *LongTermMemory) WaitForExtraction() {
	m.extraction.WaitForCompletion()
}

// IsExtractionInProgress reports whether extraction is running.
func (m *LongTermMemory) IsExtractionInProgress() bool {
	return m.extraction.IsExtractionInProgress()
}

// Namespace returns the current session namespace.
func (m *LongTermMemory) Namespace() Namespace {
	return m.ns
}
