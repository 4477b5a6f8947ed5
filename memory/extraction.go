package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/evermindhq/mnemo-go-sdk/core"
)

// sessionState tracks the per-session buffering state machine:
// Idle → Buffering → Extracting → Idle.
type sessionState int

const (
	stateIdle sessionState = iota
	stateBuffering
	stateExtracting
)

// ExtractionCoordinator buffers conversation turns per session and decides
// when the buffer is flushed to the external Extractor: after
// MaxBufferTurns turns, after MaxBufferTokens estimated tokens, or at
// session end — whichever comes first.
//
// Extraction itself is delegated; the coordinator only decides when to
// call it, how to batch the input, and whether to wait. In asynchronous
// mode a run is bounded by ExtractionTimeout; on timeout or failure the
// batch is dropped and logged, never retried. Memory capture is
// best-effort, not guaranteed delivery, and never blocks the conversation.
type ExtractionCoordinator struct {
	extractor Extractor
	embedder  Embedder
	stores    *StoreCoordinator
	cfg       *Config
	tokens    *TokenEstimator
	log       *zap.Logger

	mu           sync.Mutex
	ns           Namespace
	sessionID    string
	state        sessionState
	buffer       []core.Message
	bufferTokens int

	// generation increments on every InitSession; an async run carrying a
	// stale generation discards its result instead of applying it against
	// a newer buffer state.
	generation uint64

	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewExtractionCoordinator wires the coordinator to its collaborators.
// A nil logger defaults to a no-op logger.
func NewExtractionCoordinator(extractor Extractor, embedder Embedder, stores *StoreCoordinator, cfg *Config, log *zap.Logger) *ExtractionCoordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExtractionCoordinator{
		extractor: extractor,
		embedder:  embedder,
		stores:    stores,
		cfg:       cfg,
		tokens:    NewTokenEstimator(),
		log:       log.With(zap.String("component", "extraction_coordinator")),
	}
}

// InitSession resets the buffer for a new session in the given namespace.
// Any still-running extraction from a previous session keeps running but
// its result will be discarded as stale.
func (e *ExtractionCoordinator) InitSession(ns Namespace, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ns = ns
	e.sessionID = sessionID
	e.state = stateBuffering
	e.buffer = nil
	e.bufferTokens = 0
	e.generation++
	e.log.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("namespace", ns.Path()))
}

// OnMessage appends a conversation turn to the buffer and fires extraction
// when either trigger threshold is reached. In synchronous mode the call
// blocks until the extracted records are stored; in asynchronous mode it
// returns once the run is dispatched.
func (e *ExtractionCoordinator) OnMessage(ctx context.Context, msg core.Message) error {
	e.mu.Lock()
	if e.state == stateIdle {
		// No active session; turns before InitSession are not captured.
		e.mu.Unlock()
		return nil
	}
	e.buffer = append(e.buffer, msg)
	e.bufferTokens += e.tokens.Estimate(msg.Content)

	trigger := len(e.buffer) >= e.cfg.MaxBufferTurns || e.bufferTokens >= e.cfg.MaxBufferTokens
	if !trigger {
		e.mu.Unlock()
		return nil
	}
	batch, ns, gen := e.takeBufferLocked()
	e.mu.Unlock()

	e.log.Debug("extraction triggered",
		zap.Int("turns", len(batch)),
		zap.String("namespace", ns.Path()))
	return e.dispatch(ctx, ns, batch, gen)
}

// OnSessionEnd flushes any remaining buffered turns through extraction when
// ExtractOnSessionEnd is enabled, then clears the session state.
func (e *ExtractionCoordinator) OnSessionEnd(ctx context.Context) error {
	e.mu.Lock()
	var (
		batch []core.Message
		ns    Namespace
		gen   uint64
	)
	if e.cfg.ExtractOnSessionEnd && len(e.buffer) > 0 {
		batch, ns, gen = e.takeBufferLocked()
	}
	e.state = stateIdle
	e.sessionID = ""
	e.buffer = nil
	e.bufferTokens = 0
	e.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return e.dispatch(ctx, ns, batch, gen)
}

// takeBufferLocked drains the buffer and returns the batch with the session
// context it belongs to. Caller must hold e.mu.
func (e *ExtractionCoordinator) takeBufferLocked() ([]core.Message, Namespace, uint64) {
	batch := e.buffer
	e.buffer = nil
	e.bufferTokens = 0
	e.state = stateExtracting
	return batch, e.ns, e.generation
}

// dispatch runs the batch synchronously or hands it to a bounded async run.
func (e *ExtractionCoordinator) dispatch(ctx context.Context, ns Namespace, batch []core.Message, gen uint64) error {
	if !e.cfg.AsyncExtraction {
		err := e.runExtraction(ctx, ns, batch, gen)
		e.finishRun()
		return err
	}

	e.inFlight.Add(1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)
		defer e.finishRun()

		// Detached from the triggering turn's context: the conversation
		// continues regardless of how this run ends.
		runCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ExtractionTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- e.runExtraction(runCtx, ns, batch, gen)
		}()

		select {
		case err := <-done:
			if err != nil {
				e.log.Warn("extraction run failed, batch dropped",
					zap.Int("turns", len(batch)), zap.Error(err))
			}
		case <-runCtx.Done():
			// The in-flight work is abandoned, not killed; a late result
			// is discarded by the generation check inside runExtraction.
			e.log.Warn("extraction timed out, batch dropped",
				zap.Int("turns", len(batch)),
				zap.Duration("timeout", e.cfg.ExtractionTimeout))
		}
	}()
	return nil
}

// finishRun moves the state machine back from Extracting to Buffering
// (or leaves Idle alone after session end).
func (e *ExtractionCoordinator) finishRun() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateExtracting {
		e.state = stateBuffering
	}
}

// runExtraction calls the extractor, embeds the resulting records, and
// stores them. Extractor failure collapses to zero records for the batch.
func (e *ExtractionCoordinator) runExtraction(ctx context.Context, ns Namespace, batch []core.Message, gen uint64) error {
	records, err := e.extractor.Extract(ctx, ns, batch)
	if err != nil {
		e.log.Warn("extractor error, treating as zero records", zap.Error(err))
		return nil
	}
	if len(records) == 0 {
		return nil
	}

	e.mu.Lock()
	stale := gen != e.generation
	e.mu.Unlock()
	if stale {
		e.log.Warn("discarding stale extraction result",
			zap.Int("records", len(records)))
		return nil
	}
	if err := ctx.Err(); err != nil {
		// The run's deadline passed while the extractor was still working;
		// the batch was already reported as dropped.
		e.log.Warn("discarding late extraction result",
			zap.Int("records", len(records)), zap.Error(err))
		return nil
	}

	kept := make([]*MemoryRecord, 0, len(records))
	embeddings := make([][]float32, 0, len(records))
	for _, r := range records {
		emb, err := e.embedder.Embed(ctx, r.Content)
		if err != nil {
			e.log.Warn("embedding failed, record skipped",
				zap.String("id", r.ID), zap.Error(err))
			continue
		}
		kept = append(kept, r)
		embeddings = append(embeddings, emb)
	}
	if len(kept) == 0 {
		return nil
	}
	if err := e.stores.SaveAll(ctx, kept, embeddings); err != nil {
		return err
	}
	e.log.Info("extracted records stored",
		zap.Int("count", len(kept)),
		zap.String("namespace", ns.Path()))
	return nil
}

// IsExtractionInProgress reports whether any asynchronous run is in flight.
func (e *ExtractionCoordinator) IsExtractionInProgress() bool {
	return e.inFlight.Load() > 0
}

// WaitForCompletion blocks until every in-flight extraction run has
// finished. It returns immediately when none is in flight.
func (e *ExtractionCoordinator) WaitForCompletion() {
	e.wg.Wait()
}

// BufferedTurns returns the current number of buffered conversation turns.
func (e *ExtractionCoordinator) BufferedTurns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}
